package config

import (
	"os"
	"testing"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.MinROI != 0.0005 {
		t.Errorf("MinROI = %v, want 0.0005", c.MinROI)
	}
	if c.MaxROI != 0.40 {
		t.Errorf("MaxROI = %v, want 0.40", c.MaxROI)
	}
	if c.SellerTaxCap != 5_000_000 {
		t.Errorf("SellerTaxCap = %v, want 5000000", c.SellerTaxCap)
	}
	if c.GETaxCap != 5_000_000 {
		t.Errorf("GETaxCap = %v, want 5000000", c.GETaxCap)
	}
	if !c.GETaxExemptItems[8011] {
		t.Errorf("expected item 8011 to be GE tax exempt")
	}
	if c.GETaxExemptItems[4151] {
		t.Errorf("did not expect item 4151 to be GE tax exempt")
	}
}

func TestLoadFromEnv_Override(t *testing.T) {
	os.Setenv("GECOPILOT_MIN_ROI", "0.01")
	os.Setenv("GECOPILOT_PORT", "9090")
	os.Setenv("GECOPILOT_ENABLE_TRENDS", "false")
	defer os.Unsetenv("GECOPILOT_MIN_ROI")
	defer os.Unsetenv("GECOPILOT_PORT")
	defer os.Unsetenv("GECOPILOT_ENABLE_TRENDS")

	c := LoadFromEnv()
	if c.MinROI != 0.01 {
		t.Errorf("MinROI = %v, want 0.01", c.MinROI)
	}
	if c.Port != 9090 {
		t.Errorf("Port = %v, want 9090", c.Port)
	}
	if c.EnableTrends {
		t.Errorf("expected EnableTrends to be false")
	}
}
