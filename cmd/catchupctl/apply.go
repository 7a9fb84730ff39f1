package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a subscription manifest",
	Long: `apply reads a declarative YAML manifest describing one subscription
and runs it, the declarative counterpart to "subscribe"'s flags.

Example manifest:

  apiVersion: catchup/v1
  kind: StreamSubscription
  spec:
    stream: orders-42
    fromExclusive: "10"
    resolveLinkTos: false
    infinite: true
    readBatchSize: 250
    target: eventstore:9898

Examples:
  catchupctl apply -f subscription.yaml
  catchupctl apply -f subscription.yaml --fake`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	applyCmd.Flags().Bool("fake", false, "use an in-memory fake connection instead of the manifest's target")
	applyCmd.Flags().Int("fake-seed", 20, "number of demo events to seed the fake connection with")
	applyCmd.Flags().Bool("fake-live", true, "keep appending a new demo event periodically (only with --fake)")
	_ = applyCmd.MarkFlagRequired("file")
}

// manifest mirrors this codebase's WarrenResource shape: an apiVersion/kind
// envelope around a free-form spec map, so new subscription kinds can be
// added without changing the envelope.
type manifest struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	Spec       map[string]any `yaml:"spec"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	fake, _ := cmd.Flags().GetBool("fake")
	fakeSeed, _ := cmd.Flags().GetInt("fake-seed")
	fakeLive, _ := cmd.Flags().GetBool("fake-live")
	metricsAddr, _ := cmd.InheritedFlags().GetString("metrics-addr")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	serveMetrics(metricsAddr)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch m.Kind {
	case "StreamSubscription":
		p, err := streamParamsFromSpec(m.Spec, fake, fakeSeed, fakeLive)
		if err != nil {
			return err
		}
		return runStreamSubscription(ctx, p)
	case "AllSubscription":
		p, err := allParamsFromSpec(m.Spec, fake, fakeSeed, fakeLive)
		if err != nil {
			return err
		}
		return runAllSubscription(ctx, p)
	default:
		return fmt.Errorf("unsupported manifest kind: %q (expected StreamSubscription or AllSubscription)", m.Kind)
	}
}

func specString(spec map[string]any, key, def string) string {
	if v, ok := spec[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func specBool(spec map[string]any, key string, def bool) bool {
	if v, ok := spec[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func specUint32(spec map[string]any, key string, def uint32) uint32 {
	if v, ok := spec[key]; ok {
		if n, ok := v.(int); ok {
			return uint32(n)
		}
	}
	return def
}

func streamParamsFromSpec(spec map[string]any, fake bool, fakeSeed int, fakeLive bool) (streamParams, error) {
	return streamParams{
		target:         specString(spec, "target", "localhost:9898"),
		fake:           fake,
		fakeSeed:       fakeSeed,
		fakeLive:       fakeLive,
		streamID:       specString(spec, "stream", ""),
		from:           specString(spec, "fromExclusive", "first"),
		resolveLinkTos: specBool(spec, "resolveLinkTos", false),
		infinite:       specBool(spec, "infinite", true),
		batchSize:      specUint32(spec, "readBatchSize", 500),
	}, nil
}

func allParamsFromSpec(spec map[string]any, fake bool, fakeSeed int, fakeLive bool) (allParams, error) {
	return allParams{
		target:         specString(spec, "target", "localhost:9898"),
		fake:           fake,
		fakeSeed:       fakeSeed,
		fakeLive:       fakeLive,
		from:           specString(spec, "fromExclusive", "first"),
		resolveLinkTos: specBool(spec, "resolveLinkTos", false),
		infinite:       specBool(spec, "infinite", true),
		batchSize:      specUint32(spec, "readBatchSize", 500),
	}, nil
}
