package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCustomerRecordJSON(t *testing.T) {
	r := CustomerRecord{
		Tenure:           2,
		MonthlyCharges:   decimal.RequireFromString("80"),
		CustomerValue:    decimal.RequireFromString("1700.5"),
		ChurnProbability: 0.7,
		ExpectedROI:      decimal.RequireFromString("-3"),
		RiskLevel:        RiskHigh,
	}
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"tenure":2,"monthly_charges":"80","customer_value":"1700.5","churn_prob":0.7,"expected_roi":"-3","risk_level":"High"}`
	if string(b) != want {
		t.Fatalf("got %s\nwant %s", b, want)
	}

	var back CustomerRecord
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.CustomerValue.Equal(r.CustomerValue) || back.RiskLevel != RiskHigh {
		t.Fatalf("got %+v", back)
	}
}

func TestParseRiskLevel(t *testing.T) {
	tests := map[string]RiskLevel{"high": RiskHigh, " Medium ": RiskMedium, "LOW": RiskLow}
	for in, want := range tests {
		got, err := ParseRiskLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseRiskLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRiskLevel("Severe"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
