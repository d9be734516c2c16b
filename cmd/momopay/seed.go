package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"movie-membership/internal/config"
	"movie-membership/internal/database"
	"movie-membership/internal/domain"
	"movie-membership/internal/repo"
)

func defaultPlans() []domain.Plan {
	return []domain.Plan{
		{Code: "basic", Name: "Basic", Description: "HD streaming on one screen", PriceMonthly: 79000},
		{Code: "standard", Name: "Standard", Description: "Full HD streaming on two screens", PriceMonthly: 129000},
		{Code: "premium", Name: "Premium", Description: "4K streaming on four screens", PriceMonthly: 199000},
	}
}

func seedPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-plans",
		Short: "Insert or update the default membership plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(cfg.DB.DSN())
			if err != nil {
				return err
			}
			defer db.Close()

			plans := repo.NewPlanRepo(db)
			for _, p := range defaultPlans() {
				p.ID = uuid.NewString()
				p.DurationDays = domain.DefaultPlanDurationDays
				p.IsActive = true
				if err := plans.Upsert(cmd.Context(), &p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-36s %d VND\n", p.Code, p.ID, p.PriceMonthly)
			}
			return nil
		},
	}
}
