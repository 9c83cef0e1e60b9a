package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/GTDGit/gtd_esewa/pkg/esewa"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "esewactl",
		Usage: "Sign, verify and inspect eSewa ePay v2 payloads",
		Description: `Operator tooling for the eSewa integration.

Useful for reproducing a merchant signature, checking a redirect payload
copied from a browser, or asking the gateway about a transaction.`,
		Version: "1.0.0",
		// amounts like "1,000.0" must survive --field
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret-key",
				Usage:   "Merchant secret key (defaults to the public UAT key)",
				EnvVars: []string{"ESEWA_SECRET_KEY"},
				Value:   esewa.UATSecretKey,
			},
			&cli.StringFlag{
				Name:    "product-code",
				Usage:   "Merchant product code",
				EnvVars: []string{"ESEWA_PRODUCT_CODE"},
				Value:   esewa.TestProductCode,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "sign",
				Usage: "Sign total_amount, transaction_uuid and product_code",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "total", Usage: "Total amount as sent in the form", Required: true},
					&cli.StringFlag{Name: "uuid", Usage: "Transaction UUID", Required: true},
				},
				Action: signCommand,
			},
			{
				Name:  "form",
				Usage: "Build a complete signed payment form",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "amount", Usage: "Base amount", Required: true},
					&cli.Float64Flag{Name: "tax", Usage: "Tax amount"},
					&cli.Float64Flag{Name: "service", Usage: "Product service charge"},
					&cli.Float64Flag{Name: "delivery", Usage: "Product delivery charge"},
				},
				Action: formCommand,
			},
			{
				Name:  "verify",
				Usage: "Decode a redirect payload and check its signature",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Usage: "Base64 payload from the data query parameter", Required: true},
				},
				Action: verifyCommand,
			},
			{
				Name:  "decode",
				Usage: "Decode a redirect payload into its fields",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Usage: "Base64 payload from the data query parameter", Required: true},
				},
				Action: decodeCommand,
			},
			{
				Name:  "encode",
				Usage: "Encode fields into a redirect payload",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "field", Aliases: []string{"f"}, Usage: "Field as key=value, repeatable", Required: true},
					&cli.BoolFlag{Name: "sign", Usage: "Add signed_field_names and signature"},
					&cli.StringFlag{
						Name:  "signed-field-names",
						Usage: "Fields to sign when --sign is set",
						Value: "transaction_code,status,total_amount,transaction_uuid,product_code,signed_field_names",
					},
				},
				Action: encodeCommand,
			},
			{
				Name:   "txid",
				Usage:  "Generate a transaction UUID",
				Action: txidCommand,
			},
			{
				Name:  "status",
				Usage: "Query the gateway for a transaction's status",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "total", Usage: "Total amount as sent in the form", Required: true},
					&cli.StringFlag{Name: "uuid", Usage: "Transaction UUID", Required: true},
					&cli.StringFlag{Name: "status-url", Usage: "Status endpoint", EnvVars: []string{"ESEWA_STATUS_URL"}, Value: esewa.TestStatusURL},
					&cli.DurationFlag{Name: "timeout", Usage: "Request timeout", Value: esewa.DefaultTimeout},
				},
				Action: statusCommand,
			},
		},
	}
}
