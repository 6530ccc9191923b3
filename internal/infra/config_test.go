package infra

import "testing"

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RenderProvider != "synthetic" {
		t.Errorf("RenderProvider = %q, want synthetic", cfg.RenderProvider)
	}
	if cfg.BudgetCeiling != 25.0 {
		t.Errorf("BudgetCeiling = %v, want 25.0", cfg.BudgetCeiling)
	}
	if cfg.Workers != 4 || cfg.MaxAttempts != 3 {
		t.Errorf("Workers = %d MaxAttempts = %d", cfg.Workers, cfg.MaxAttempts)
	}
	if cfg.RenderPerMinute != 30 || cfg.PromptPerMinute != 60 {
		t.Errorf("RenderPerMinute = %d PromptPerMinute = %d", cfg.RenderPerMinute, cfg.PromptPerMinute)
	}
	if err := cfg.ScoringWeights().Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
}

func TestLoadConfigRejectsBadWeights(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WEIGHT_TECHNICAL", "0.5")
	t.Setenv("WEIGHT_COMPOSITIONAL", "0.5")
	t.Setenv("WEIGHT_STYLE", "0.5")
	t.Setenv("WEIGHT_EMOTIONAL", "0.5")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted weights summing to 2.0")
	}
}

func TestLoadConfigRejectsBadBudget(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BUDGET_CEILING", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted zero budget ceiling")
	}
}

func TestLoadConfigRejectsFloorOutOfRange(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ACCEPTANCE_FLOOR", "11")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted acceptance floor above 10")
	}
}

func TestLoadConfigGeminiRendererNeedsKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RENDER_PROVIDER", "gemini")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted gemini renderer without api key")
	}

	t.Setenv("GEMINI_API_KEY", "k")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RenderProvider != "gemini" {
		t.Errorf("RenderProvider = %q", cfg.RenderProvider)
	}
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BUDGET_CEILING", "12.5")
	t.Setenv("CHARGE_RETRYABLE_FAILURES", "true")
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("RENDER_CALLS_PER_MINUTE", "10")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.BudgetCeiling != 12.5 {
		t.Errorf("BudgetCeiling = %v", cfg.BudgetCeiling)
	}
	if !cfg.ChargeRetryableFailures {
		t.Error("ChargeRetryableFailures not parsed")
	}
	if cfg.Workers != 8 || cfg.RenderPerMinute != 10 {
		t.Errorf("Workers = %d RenderPerMinute = %d", cfg.Workers, cfg.RenderPerMinute)
	}
}
