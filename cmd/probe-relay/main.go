// Command probe-relay sends one submission straight to the form processor,
// skipping human verification, and prints how the redirect was interpreted.
// It is meant for checking form wiring, not for production traffic.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/weiwei-tsao/form-relay/apps/api/internal/business/relay"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/config"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/keap"
	"github.com/weiwei-tsao/form-relay/apps/api/internal/platform/logging"
)

func main() {
	_ = godotenv.Load(".env.local", ".env")

	app := kingpin.New("probe-relay", "Send one test submission to the form processor and print the verdict")
	email := app.Arg("email", "Email address to submit").Required().String()
	relayURL := app.Flag("url", "Form processor URL").Envar("RELAY_URL").Default(config.DefaultRelayURL).String()
	xid := app.Flag("form-xid", "Form identifier").Envar("RELAY_FORM_XID").Required().String()
	formName := app.Flag("form-name", "Form name").Envar("RELAY_FORM_NAME").Default("Web Form submitted").String()
	version := app.Flag("version", "Platform version token").Envar("RELAY_VERSION").String()
	confirm := app.Flag("confirm", "Fetch the redirect target to confirm success").Short('c').Bool()
	maxHops := app.Flag("max-hops", "Maximum requests including the initial POST").Default("2").Int()
	allowed := app.Flag("allowed-host", "Host allowed as a confirmation target (repeatable)").Strings()
	timeout := app.Flag("timeout", "Per-request timeout").Default("10s").Duration()
	verbose := app.Flag("verbose", "Enables debug logging").Short('v').Bool()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.New(level)
	if err != nil {
		kingpin.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	client := keap.New(nil, keap.Config{URL: *relayURL, Timeout: *timeout})
	interpreter := relay.NewInterpreter(client, relay.Policy{
		Confirm:      *confirm,
		MaxHops:      *maxHops,
		AllowedHosts: *allowed,
	})

	fields := keap.FormFields(keap.Form{XID: *xid, Name: *formName, Version: *version}, *email)
	logger.Debug("relaying", zap.String("url", *relayURL), zap.Any("fields", fields))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*maxHops+1)*(*timeout))
	defer cancel()

	verdict := interpreter.Interpret(ctx, client.Relay(ctx, fields), fields)

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		kingpin.Fatalf("marshal verdict: %v", err)
	}
	fmt.Println(string(out))

	if !verdict.Accepted() {
		os.Exit(1)
	}
}
