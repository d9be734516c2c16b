package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"movie-membership/internal/infrastructure/momo"
)

// signCmd prints the canonical string and signature of a create request so a
// merchant integration can be checked against the gateway's sandbox.
func signCmd() *cobra.Command {
	var (
		accessKey   string
		secretKey   string
		partnerCode string
		amount      int64
		orderID     string
		orderInfo   string
		redirectURL string
		ipnURL      string
		requestType string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the signature for a sample create request",
		RunE: func(cmd *cobra.Command, args []string) error {
			if accessKey == "" || secretKey == "" {
				return fmt.Errorf("--access-key and --secret-key are required")
			}
			if orderID == "" {
				orderID = partnerCode + strconv.FormatInt(time.Now().UnixMilli(), 10)
			}
			fields := momo.CreateFields(accessKey, momo.CreateParams{
				PartnerCode: partnerCode,
				RequestID:   orderID,
				OrderID:     orderID,
				Amount:      amount,
				OrderInfo:   orderInfo,
				RedirectURL: redirectURL,
				IPNURL:      ipnURL,
				RequestType: requestType,
			})

			out, err := json.MarshalIndent(map[string]string{
				"rawSignature": momo.Canonical(fields),
				"signature":    momo.Sign(fields, secretKey),
				"orderId":      orderID,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&accessKey, "access-key", "", "partner access key")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "partner secret key")
	cmd.Flags().StringVar(&partnerCode, "partner-code", "MOMO", "partner code")
	cmd.Flags().Int64Var(&amount, "amount", 50000, "amount in VND")
	cmd.Flags().StringVar(&orderID, "order-id", "", "order id (generated when empty)")
	cmd.Flags().StringVar(&orderInfo, "order-info", "pay with MoMo", "order description")
	cmd.Flags().StringVar(&redirectURL, "redirect-url", "http://localhost:3000/payment/result", "browser redirect URL")
	cmd.Flags().StringVar(&ipnURL, "ipn-url", "http://localhost:5000/api/momo/ipn", "notification URL")
	cmd.Flags().StringVar(&requestType, "request-type", "payWithMethod", "request type")
	return cmd
}
