package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType indicates whether an SSM parameter is stored encrypted.
type ParameterType int

const (
	ParamSecureString ParameterType = iota
	ParamString
)

// BootstrapStep is one parameter the service reads at cold start.
type BootstrapStep struct {
	// HumanLabel is the display name shown to the operator.
	HumanLabel string

	// SSMKey is appended to /{env}/subscribe/.
	SSMKey string

	// EnvVar is the configuration variable the parameter feeds. The
	// deployed function gets EnvVar+"_SSM_PARAM" pointing at the path.
	EnvVar string

	ParamType ParameterType
	Prompt    string

	// ValidateFn checks operator input. Nil accepts anything non-empty.
	ValidateFn func(ctx context.Context, input string) ValidationResult

	IsSecret bool
	Optional bool
	Phase    string
}

// maxRetries bounds failed validation attempts per step.
const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory lists every parameter in prompt order.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			HumanLabel: "Stripe Secret Key",
			SSMKey:     "stripe/secret_key",
			EnvVar:     "STRIPE_SECRET_KEY",
			ParamType:  ParamSecureString,
			Prompt: `1. Go to Stripe Dashboard > Developers > API Keys.
   2. Copy the Secret Key (sk_...) or a restricted key (rk_...).
   3. Paste it here:`,
			ValidateFn: v.ValidateStripeKey,
			IsSecret:   true,
			Phase:      "Payment Provider",
		},
		{
			HumanLabel: "Initiate Plan Price ID",
			SSMKey:     "plans/price_initiate",
			EnvVar:     "PRICE_ID_INITIATE",
			ParamType:  ParamString,
			Prompt:     `Paste the recurring Price ID for the "initiate" plan (price_...):`,
			ValidateFn: v.ValidatePriceID,
			Phase:      "Plans",
		},
		{
			HumanLabel: "Warrior Plan Price ID",
			SSMKey:     "plans/price_warrior",
			EnvVar:     "PRICE_ID_WARRIOR",
			ParamType:  ParamString,
			Prompt:     `Paste the recurring Price ID for the "warrior" plan (price_...):`,
			ValidateFn: v.ValidatePriceID,
			Phase:      "Plans",
		},
		{
			HumanLabel: "Guardian Plan Price ID",
			SSMKey:     "plans/price_guardian",
			EnvVar:     "PRICE_ID_GUARDIAN",
			ParamType:  ParamString,
			Prompt:     `Paste the recurring Price ID for the "guardian" plan (price_...):`,
			ValidateFn: v.ValidatePriceID,
			Phase:      "Plans",
		},
		{
			HumanLabel: "Sale Start Time (optional)",
			SSMKey:     "sale/start_time",
			EnvVar:     "SALE_START_TIME",
			ParamType:  ParamString,
			Prompt:     `Sale opening instant in RFC 3339, e.g. 2026-11-01T12:00:00+09:00 (or press Enter to skip):`,
			ValidateFn: v.ValidateSaleStart,
			Optional:   true,
			Phase:      "Storefront",
		},
		{
			HumanLabel: "Redirect Base URL (optional)",
			SSMKey:     "redirect/base_url",
			EnvVar:     "REDIRECT_BASE_URL",
			ParamType:  ParamString,
			Prompt:     `Post-signup landing page, absolute URL or site path (or press Enter to skip):`,
			ValidateFn: v.ValidateRedirectURL,
			Optional:   true,
			Phase:      "Storefront",
		},
	}
}

// BootstrapRunner drives the prompt loop. It is separated from main() so
// tests can inject SSM, stdin and stderr.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// SkipOptional auto-skips steps marked Optional.
	SkipOptional bool

	// scanner is shared so buffered read-ahead is never lost between prompts.
	scanner *bufio.Scanner

	inventoryOverride []BootstrapStep
}

// NewBootstrapRunner creates a runner with production dependencies.
func NewBootstrapRunner(bctx *BootstrapContext, v *Validator) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(newSSMClient(bctx), bctx.Environment, bctx.Logger),
		Validator: v,
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
	}
}

// Step outcomes.
const (
	actionWritten     = "written"
	actionOverwritten = "overwritten"
	actionKept        = "kept"
	actionSkipped     = "skipped"
)

type stepResult struct {
	Label  string
	EnvVar string
	Action string
	Path   string
}

// stored reports whether the parameter exists in SSM after the step.
func (r stepResult) stored() bool {
	return r.Action != actionSkipped
}

// Run processes every step in order and prints a summary.
func (r *BootstrapRunner) Run(ctx context.Context) ([]stepResult, error) {
	inventory := r.inventoryOverride
	if inventory == nil {
		inventory = BuildInventory(r.Validator)
	}

	var currentPhase string
	results := make([]stepResult, 0, len(inventory))

	for i, step := range inventory {
		if step.Phase != currentPhase {
			currentPhase = step.Phase
			r.printPhaseHeader(currentPhase)
		}

		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(inventory), step.HumanLabel)

		result, err := r.processStep(ctx, step)
		if err != nil {
			return results, fmt.Errorf("step %q failed: %w", step.HumanLabel, err)
		}
		results = append(results, result)
	}

	r.printSummary(results)
	return results, nil
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMKey)
	result := stepResult{Label: step.HumanLabel, EnvVar: step.EnvVar, Path: path}

	if step.Optional && r.SkipOptional {
		fmt.Fprintf(r.Stderr, "  Skipped (--skip-optional)\n")
		result.Action = actionSkipped
		return result, nil
	}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return result, fmt.Errorf("checking existence of %s: %w", path, err)
	}

	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		choice, err := r.promptKeepOrOverwrite()
		if err != nil {
			return result, fmt.Errorf("reading keep/overwrite choice: %w", err)
		}
		if choice == "keep" {
			fmt.Fprintf(r.Stderr, "  Kept.\n")
			result.Action = actionKept
			return result, nil
		}
	}

	value, err := r.promptAndValidate(ctx, step)
	if errors.Is(err, errSkipped) {
		fmt.Fprintf(r.Stderr, "  Skipped.\n")
		result.Action = actionSkipped
		return result, nil
	}
	if err != nil {
		return result, err
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return result, fmt.Errorf("writing SSM parameter %s: %w", path, err)
	}

	result.Action = actionWritten
	if exists {
		result.Action = actionOverwritten
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return result, nil
}

// promptAndValidate reads and validates a value, retrying up to maxRetries
// times. Secret input is masked and never echoed.
func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n\n", step.Prompt)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		var input string
		var err error
		if step.IsSecret {
			input, err = r.readSecretInput("  > ")
		} else {
			input, err = r.readInput("  > ")
		}
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.HumanLabel, err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			if step.Optional {
				return "", errSkipped
			}
			fmt.Fprintf(r.Stderr, "  A value is required.\n")
			continue
		}

		if step.IsSecret {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}

		if step.ValidateFn != nil {
			vr := step.ValidateFn(ctx, input)
			if !vr.Valid {
				fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
				if attempt < maxRetries {
					fmt.Fprintf(r.Stderr, "  Try again (%d/%d).\n", attempt, maxRetries)
				}
				continue
			}
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
		}

		return input, nil
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.HumanLabel)
}

func (r *BootstrapRunner) getScanner() *bufio.Scanner {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	return r.scanner
}

func (r *BootstrapRunner) scanLine() (string, error) {
	s := r.getScanner()
	if !s.Scan() {
		if err := s.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.Text(), nil
}

func (r *BootstrapRunner) readInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)
	return r.scanLine()
}

// readSecretInput disables echo when stdin is a terminal and falls back to
// line reading for pipes and tests.
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(secret), nil
	}
	return r.scanLine()
}

func (r *BootstrapRunner) promptKeepOrOverwrite() (string, error) {
	for {
		fmt.Fprint(r.Stderr, "  [K]eep or [O]verwrite? ")

		line, err := r.scanLine()
		if err != nil {
			return "", err
		}

		switch strings.TrimSpace(strings.ToLower(line)) {
		case "k", "keep":
			return "keep", nil
		case "o", "overwrite":
			return "overwrite", nil
		default:
			fmt.Fprintf(r.Stderr, "  Please enter 'K' to keep or 'O' to overwrite.\n")
		}
	}
}

func (r *BootstrapRunner) printPhaseHeader(phase string) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Phase: %s\n", phase)
	fmt.Fprintf(r.Stderr, "============================================================\n")
}

func (r *BootstrapRunner) printSummary(results []stepResult) {
	counts := make(map[string]int, 4)

	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	for _, res := range results {
		counts[res.Action]++
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Label)
	}
	fmt.Fprintf(r.Stderr, "------------------------------------------------------------\n")
	fmt.Fprintf(r.Stderr, "  Total: %d parameters\n", len(results))
	fmt.Fprintf(r.Stderr, "  Written: %d | Overwritten: %d | Kept: %d | Skipped: %d\n",
		counts[actionWritten], counts[actionOverwritten], counts[actionKept], counts[actionSkipped])
	fmt.Fprintf(r.Stderr, "============================================================\n\n")
}

// printPointers writes the X_SSM_PARAM=path lines for every stored
// parameter, ready to paste into the function's environment.
func printPointers(out io.Writer, inventory []BootstrapStep, results []stepResult) {
	byEnv := make(map[string]stepResult, len(results))
	for _, res := range results {
		byEnv[res.EnvVar] = res
	}
	for _, step := range inventory {
		res, ok := byEnv[step.EnvVar]
		if !ok || !res.stored() {
			continue
		}
		fmt.Fprintf(out, "%s_SSM_PARAM=%s\n", step.EnvVar, res.Path)
	}
}
