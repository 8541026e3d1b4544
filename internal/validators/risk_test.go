package validators

import "testing"

// Classes of sizes 2 and 4: prosecutor 0.5, journalist 0.375,
// uniqueness 0.5.
func TestAssessRiskMetricsMatchWorkedExample(t *testing.T) {
	a := NewRiskAssessor()
	report := a.Assess(classesOfSize(2, 4))

	if report.ProsecutorRisk != 0.5 {
		t.Errorf("expected prosecutor risk 0.5, got %v", report.ProsecutorRisk)
	}
	if report.JournalistRisk != 0.375 {
		t.Errorf("expected journalist risk 0.375, got %v", report.JournalistRisk)
	}
	if report.UniquenessRatio != 0.5 {
		t.Errorf("expected uniqueness ratio 0.5, got %v", report.UniquenessRatio)
	}
	if report.RiskLevel != RiskHigh {
		t.Errorf("expected High risk level (prosecutor 0.5 >= 0.20), got %v", report.RiskLevel)
	}
}

func TestAssessEmptyInputYieldsLowRiskZeroMetrics(t *testing.T) {
	a := NewRiskAssessor()
	report := a.Assess(nil)

	if report.ProsecutorRisk != 0 || report.JournalistRisk != 0 || report.MarketerRisk != 0 || report.UniquenessRatio != 0 {
		t.Fatalf("expected all-zero metrics, got %+v", report)
	}
	if report.RiskLevel != RiskLow {
		t.Fatalf("expected Low risk level, got %v", report.RiskLevel)
	}
}

func TestAssessMarketerRiskCountsHighRiskClassesOnly(t *testing.T) {
	a := NewRiskAssessor()
	// One class of size 100 (risk 0.01, below threshold) and one of size 2
	// (risk 0.5, at/above threshold). Marketer risk counts only the
	// size-2 class's 2 records out of 102 total.
	report := a.Assess(classesOfSize(100, 2))

	want := 2.0 / 102.0
	if report.MarketerRisk != want {
		t.Errorf("expected marketer risk %v, got %v", want, report.MarketerRisk)
	}
}

func TestAssessLowRiskWhenAllClassesLarge(t *testing.T) {
	a := NewRiskAssessor()
	report := a.Assess(classesOfSize(20, 20, 20))

	if report.RiskLevel != RiskLow {
		t.Fatalf("expected Low risk level for large uniform classes, got %v (report=%+v)", report.RiskLevel, report)
	}
}
