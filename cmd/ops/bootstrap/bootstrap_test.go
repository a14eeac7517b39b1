package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// simpleInventory mirrors BuildInventory with format-only validation so
// tests never reach Stripe.
func simpleInventory(v *Validator) []BootstrapStep {
	inv := BuildInventory(v)
	for i := range inv {
		if inv[i].EnvVar == "STRIPE_SECRET_KEY" {
			inv[i].ValidateFn = func(_ context.Context, in string) ValidationResult {
				if !stripeKeyRegex.MatchString(in) {
					return ValidationResult{Valid: false, Message: "bad format"}
				}
				return ValidationResult{Valid: true, Message: "ok"}
			}
		}
	}
	return inv
}

func newTestRunner(mock *mockSSMClient, stdin string) (*BootstrapRunner, *bytes.Buffer) {
	stderr := &bytes.Buffer{}
	v := NewValidatorWithDeps(nil, "", func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) })
	return &BootstrapRunner{
		SSM:               newTestSSMManager(mock, "dev", nil),
		Validator:         v,
		Stdin:             strings.NewReader(stdin),
		Stderr:            stderr,
		inventoryOverride: simpleInventory(v),
	}, stderr
}

const (
	validKey = "sk_test_abcdefghijklmnopqrstuvwxyz"
	allNew   = validKey + "\n" +
		"price_initiate01\n" +
		"price_warrior001\n" +
		"price_guardian01\n" +
		"2026-11-01T12:00:00+09:00\n" +
		"/thank-you.html\n"
)

func TestBuildInventory(t *testing.T) {
	inv := BuildInventory(NewValidator(""))

	wantEnv := []string{
		"STRIPE_SECRET_KEY",
		"PRICE_ID_INITIATE",
		"PRICE_ID_WARRIOR",
		"PRICE_ID_GUARDIAN",
		"SALE_START_TIME",
		"REDIRECT_BASE_URL",
	}
	if len(inv) != len(wantEnv) {
		t.Fatalf("inventory size = %d, want %d", len(inv), len(wantEnv))
	}
	for i, step := range inv {
		if step.EnvVar != wantEnv[i] {
			t.Errorf("step %d EnvVar = %s, want %s", i, step.EnvVar, wantEnv[i])
		}
		if step.ValidateFn == nil {
			t.Errorf("step %s has no validator", step.HumanLabel)
		}
	}

	key := inv[0]
	if key.ParamType != ParamSecureString || !key.IsSecret || key.Optional {
		t.Errorf("Stripe key must be a required masked SecureString: %+v", key)
	}
	for _, step := range inv[1:] {
		if step.ParamType != ParamString || step.IsSecret {
			t.Errorf("%s should be a plain String", step.HumanLabel)
		}
	}
	if !inv[4].Optional || !inv[5].Optional {
		t.Error("sale start and redirect must be optional")
	}
}

func TestRun_AllNewParameters(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{})}
	runner, stderr := newTestRunner(mock, allNew)

	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr.String())
	}

	if len(mock.putCalls) != 6 {
		t.Fatalf("put calls = %d, want 6", len(mock.putCalls))
	}
	if aws.ToString(mock.putCalls[0].Name) != "/dev/subscribe/stripe/secret_key" ||
		mock.putCalls[0].Type != ssmtypes.ParameterTypeSecureString {
		t.Errorf("first write = %s (%s)", aws.ToString(mock.putCalls[0].Name), mock.putCalls[0].Type)
	}
	for _, res := range results {
		if res.Action != actionWritten {
			t.Errorf("%s action = %s, want written", res.Label, res.Action)
		}
	}
	if strings.Contains(stderr.String(), validKey) {
		t.Error("secret echoed to stderr")
	}
	if !strings.Contains(stderr.String(), "Written: 6") {
		t.Errorf("summary missing counts:\n%s", stderr.String())
	}
}

func TestRun_ExistingKeptAndOverwritten(t *testing.T) {
	existing := map[string]bool{
		"/dev/subscribe/stripe/secret_key":   true,
		"/dev/subscribe/plans/price_warrior": true,
	}
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(existing)}

	stdin := "k\n" + // keep the key
		"price_initiate01\n" +
		"o\nprice_warrior002\n" + // overwrite warrior
		"price_guardian01\n" +
		"\n" + // skip sale start
		"\n" // skip redirect
	runner, stderr := newTestRunner(mock, stdin)

	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v\nstderr: %s", err, stderr.String())
	}

	want := []string{actionKept, actionWritten, actionOverwritten, actionWritten, actionSkipped, actionSkipped}
	for i, res := range results {
		if res.Action != want[i] {
			t.Errorf("%s action = %s, want %s", res.Label, res.Action, want[i])
		}
	}
	if len(mock.putCalls) != 3 {
		t.Errorf("put calls = %d, want 3", len(mock.putCalls))
	}
}

func TestRun_SkipOptional(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{})}
	runner, _ := newTestRunner(mock, validKey+"\nprice_initiate01\nprice_warrior001\nprice_guardian01\n")
	runner.SkipOptional = true

	results, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.putCalls) != 4 {
		t.Errorf("put calls = %d, want 4", len(mock.putCalls))
	}
	if results[4].Action != actionSkipped || results[5].Action != actionSkipped {
		t.Error("optional steps should be skipped")
	}
}

func TestProcessStep_ValidationRetry(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{})}
	runner, stderr := newTestRunner(mock, "not-a-price\nprice_warrior001\n")
	step := runner.inventoryOverride[2]

	res, err := runner.processStep(context.Background(), step)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != actionWritten {
		t.Errorf("action = %s", res.Action)
	}
	if !strings.Contains(stderr.String(), "Validation failed") {
		t.Error("expected validation failure message")
	}
	if got := aws.ToString(mock.putCalls[0].Value); got != "price_warrior001" {
		t.Errorf("written value = %q", got)
	}
}

func TestProcessStep_MaxRetriesExceeded(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{})}
	runner, _ := newTestRunner(mock, strings.Repeat("nope\n", maxRetries))

	_, err := runner.processStep(context.Background(), runner.inventoryOverride[1])
	if err == nil || !strings.Contains(err.Error(), "maximum retries") {
		t.Errorf("expected max retries error, got %v", err)
	}
	if len(mock.putCalls) != 0 {
		t.Error("nothing should be written")
	}
}

func TestProcessStep_RequiredEmptyInputReprompts(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{})}
	runner, stderr := newTestRunner(mock, "\n"+validKey+"\n")

	res, err := runner.processStep(context.Background(), runner.inventoryOverride[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != actionWritten {
		t.Errorf("action = %s", res.Action)
	}
	if !strings.Contains(stderr.String(), "A value is required.") {
		t.Error("expected required-value message")
	}
}

func TestProcessStep_InputExhausted(t *testing.T) {
	mock := &mockSSMClient{getParameterFn: mockGetParameterExisting(map[string]bool{})}
	runner, _ := newTestRunner(mock, "")

	if _, err := runner.processStep(context.Background(), runner.inventoryOverride[0]); err == nil {
		t.Error("expected error on EOF")
	}
}

func TestProcessStep_SSMErrors(t *testing.T) {
	mock := &mockSSMClient{
		getParameterFn: func(context.Context, *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	runner, _ := newTestRunner(mock, "")
	if _, err := runner.processStep(context.Background(), runner.inventoryOverride[1]); err == nil {
		t.Error("expected existence check error")
	}

	mock = &mockSSMClient{
		getParameterFn: mockGetParameterExisting(map[string]bool{}),
		putParameterFn: func(context.Context, *ssm.PutParameterInput) (*ssm.PutParameterOutput, error) {
			return nil, errors.New("kms unavailable")
		},
	}
	runner, _ = newTestRunner(mock, "price_initiate01\n")
	_, err := runner.processStep(context.Background(), runner.inventoryOverride[1])
	if err == nil || !strings.Contains(err.Error(), "kms unavailable") {
		t.Errorf("expected write error, got %v", err)
	}
}

func TestPromptKeepOrOverwrite_RepromptsOnGarbage(t *testing.T) {
	runner, stderr := newTestRunner(&mockSSMClient{}, "maybe\nO\n")

	choice, err := runner.promptKeepOrOverwrite()
	if err != nil || choice != "overwrite" {
		t.Errorf("got (%q, %v), want overwrite", choice, err)
	}
	if !strings.Contains(stderr.String(), "Please enter 'K'") {
		t.Error("expected reprompt")
	}
}

func TestPrintPointers(t *testing.T) {
	inv := BuildInventory(NewValidator(""))
	results := []stepResult{
		{EnvVar: "STRIPE_SECRET_KEY", Action: actionKept, Path: "/dev/subscribe/stripe/secret_key"},
		{EnvVar: "PRICE_ID_INITIATE", Action: actionWritten, Path: "/dev/subscribe/plans/price_initiate"},
		{EnvVar: "PRICE_ID_WARRIOR", Action: actionOverwritten, Path: "/dev/subscribe/plans/price_warrior"},
		{EnvVar: "SALE_START_TIME", Action: actionSkipped, Path: "/dev/subscribe/sale/start_time"},
	}

	var out bytes.Buffer
	printPointers(&out, inv, results)

	want := "STRIPE_SECRET_KEY_SSM_PARAM=/dev/subscribe/stripe/secret_key\n" +
		"PRICE_ID_INITIATE_SSM_PARAM=/dev/subscribe/plans/price_initiate\n" +
		"PRICE_ID_WARRIOR_SSM_PARAM=/dev/subscribe/plans/price_warrior\n"
	if out.String() != want {
		t.Errorf("pointers =\n%s\nwant\n%s", out.String(), want)
	}
}
