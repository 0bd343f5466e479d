package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidahmann/geogate/internal/decision"
	"github.com/davidahmann/geogate/internal/feature"
	"github.com/davidahmann/geogate/internal/intake"
	"github.com/davidahmann/geogate/internal/policy"
	"github.com/davidahmann/geogate/internal/review"
	"github.com/davidahmann/geogate/internal/summary"
	"github.com/davidahmann/geogate/pkg/types"
)

type decideOptions struct {
	requestPath  string
	findingsPath string
	draftPath    string
	policyPath   string
	name         string
	description  string
	summary      bool
}

func newDecideCmd() *cobra.Command {
	var opts decideOptions
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Correct a draft verdict offline and print the decision",
		Long: "Runs the review engine locally. Input is either a full decide request\n" +
			"(--request) or separate findings and draft files. Nothing is recorded.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDecide(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.requestPath, "request", "", "decide request JSON file")
	f.StringVar(&opts.findingsPath, "findings", "", "analysis findings JSON file")
	f.StringVar(&opts.draftPath, "draft", "", "draft decision record JSON file")
	f.StringVar(&opts.policyPath, "policy", "", "policy YAML file (built-in policy when empty)")
	f.StringVar(&opts.name, "name", "", "feature name")
	f.StringVar(&opts.description, "description", "", "feature description")
	f.BoolVar(&opts.summary, "summary", false, "print the UI summary instead of the decision envelope")
	cmd.MarkFlagsMutuallyExclusive("request", "findings")
	return cmd
}

func runDecide(cmd *cobra.Command, opts decideOptions) error {
	req, err := loadDecideRequest(opts)
	if err != nil {
		return err
	}
	req, err = req.Normalize()
	if err != nil {
		return err
	}

	loaded := policy.Builtin()
	if opts.policyPath != "" {
		if loaded, err = policy.LoadPolicy(opts.policyPath); err != nil {
			return err
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "offline"
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)

	feat, err := feature.BuildFeature(sessionID, req.FeatureName, req.FeatureDescription, *req.Findings, createdAt)
	if err != nil {
		return err
	}
	rec, trace, err := review.Decide(*req.Draft, req.Findings, review.ConfigFromPolicy(loaded.Policy))
	if err != nil {
		return err
	}
	env, err := decision.BuildDecision(feat.FeatureID, sessionID, types.DecisionPolicy{
		PolicyID:      loaded.Policy.PolicyID,
		PolicyVersion: loaded.Policy.PolicyVersion,
		PolicyHash:    loaded.Hash,
	}, rec, trace, "", createdAt)
	if err != nil {
		return err
	}

	var out any = env
	if opts.summary {
		out = summary.Build(feat, env, false)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

func loadDecideRequest(opts decideOptions) (intake.DecideRequest, error) {
	if opts.requestPath != "" {
		f, err := os.Open(opts.requestPath)
		if err != nil {
			return intake.DecideRequest{}, err
		}
		defer f.Close()
		return intake.Decode(f)
	}
	if opts.findingsPath == "" {
		return intake.DecideRequest{}, fmt.Errorf("one of --request or --findings is required")
	}

	req := intake.DecideRequest{FeatureName: opts.name, FeatureDescription: opts.description}
	var findings types.AnalysisFindings
	if err := readJSONFile(opts.findingsPath, &findings); err != nil {
		return intake.DecideRequest{}, fmt.Errorf("findings: %w", err)
	}
	req.Findings = &findings
	if opts.draftPath != "" {
		var draft types.DecisionRecord
		if err := readJSONFile(opts.draftPath, &draft); err != nil {
			return intake.DecideRequest{}, fmt.Errorf("draft: %w", err)
		}
		req.Draft = &draft
	}
	return req, nil
}

func readJSONFile(path string, out any) error {
	// #nosec G304 -- path is operator-provided.
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
