package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/GTDGit/gtd_esewa/pkg/esewa"
)

func signCommand(c *cli.Context) error {
	total, uuid, code := c.String("total"), c.String("uuid"), c.String("product-code")
	signer := esewa.NewSigner(c.String("secret-key"))

	fmt.Fprintf(c.App.Writer, "message:   %s\n", esewa.RequestMessage(total, uuid, code))
	fmt.Fprintf(c.App.Writer, "signature: %s\n", signer.Sign(total, uuid, code))
	return nil
}

func formCommand(c *cli.Context) error {
	assembler := esewa.NewAssembler(esewa.NewSigner(c.String("secret-key")), c.String("product-code"))
	fields, _, err := assembler.Assemble(c.Float64("amount"), c.Float64("tax"), c.Float64("service"), c.Float64("delivery"))
	if err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	return printJSON(c, fields)
}

func verifyCommand(c *cli.Context) error {
	fields, err := decodeFlag(c)
	if err != nil {
		return err
	}
	if err := printFields(c, fields); err != nil {
		return err
	}

	signer := esewa.NewSigner(c.String("secret-key"))
	if !signer.Verify(fields, fields[esewa.FieldSignature]) {
		return cli.Exit("signature: INVALID", 2)
	}
	fmt.Fprintln(c.App.Writer, "signature: valid")
	return nil
}

func decodeCommand(c *cli.Context) error {
	fields, err := decodeFlag(c)
	if err != nil {
		return err
	}
	return printFields(c, fields)
}

func encodeCommand(c *cli.Context) error {
	fields := make(map[string]string)
	for _, kv := range c.StringSlice("field") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid field %q, expected key=value", kv)
		}
		fields[k] = v
	}

	if c.Bool("sign") {
		names := c.String("signed-field-names")
		fields[esewa.FieldSignedFieldNames] = names
		msg, ok := esewa.CanonicalMessage(fields, names)
		if !ok {
			return fmt.Errorf("cannot sign: every name in %q needs a --field", names)
		}
		fields[esewa.FieldSignature] = esewa.NewSigner(c.String("secret-key")).SignMessage(msg)
	}

	data, err := esewa.EncodeResponse(fields)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, data)
	return nil
}

func txidCommand(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, esewa.NewTransactionUUID())
	return nil
}

func statusCommand(c *cli.Context) error {
	client := esewa.NewClient(esewa.Config{
		StatusURL: c.String("status-url"),
		Timeout:   c.Duration("timeout"),
	})
	resp := client.CheckStatus(c.Context, c.String("product-code"), c.String("total"), c.String("uuid"))
	if err := printJSON(c, resp); err != nil {
		return err
	}
	if resp.Failed() {
		return cli.Exit("status check failed", 1)
	}
	return nil
}

func decodeFlag(c *cli.Context) (map[string]string, error) {
	// shells and browsers often turn '+' into a space
	fields := esewa.DecodeResponse(strings.ReplaceAll(c.String("data"), " ", "+"))
	if msg, ok := fields[esewa.FieldError]; ok && len(fields) == 1 {
		return nil, errors.New(msg)
	}
	return fields, nil
}

// printFields prints one key=value per line in key order.
func printFields(c *cli.Context, fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(c.App.Writer, "%s=%s\n", k, fields[k]); err != nil {
			return err
		}
	}
	return nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
