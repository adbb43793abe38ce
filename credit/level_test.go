package credit

import "testing"

func TestClassifyLevel(t *testing.T) {
	tests := []struct {
		name       string
		balance    int64
		creditType Type
		want       Level
	}{
		// CV processing thresholds: low <= 100, very low <= 5.
		{"cv well above low", 500, TypeCVProcessing, LevelNormal},
		{"cv just above low", 101, TypeCVProcessing, LevelNormal},
		{"cv at low boundary", 100, TypeCVProcessing, LevelLow},
		{"cv between thresholds", 50, TypeCVProcessing, LevelLow},
		{"cv just above very low", 6, TypeCVProcessing, LevelLow},
		{"cv at very low boundary", 5, TypeCVProcessing, LevelVeryLow},
		{"cv zero", 0, TypeCVProcessing, LevelVeryLow},
		{"cv negative", -10, TypeCVProcessing, LevelVeryLow},

		// Interview thresholds: low <= 50, very low <= 5.
		{"interview above low", 51, TypeInterview, LevelNormal},
		{"interview at low boundary", 50, TypeInterview, LevelLow},
		{"interview between thresholds", 10, TypeInterview, LevelLow},
		{"interview at very low boundary", 5, TypeInterview, LevelVeryLow},
		{"interview zero", 0, TypeInterview, LevelVeryLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyLevel(tt.balance, tt.creditType); got != tt.want {
				t.Errorf("ClassifyLevel(%d, %s) = %s, want %s", tt.balance, tt.creditType, got, tt.want)
			}
		})
	}
}

func TestTypeValid(t *testing.T) {
	if !TypeCVProcessing.Valid() || !TypeInterview.Valid() {
		t.Error("known credit types reported invalid")
	}
	if Type("tokens").Valid() || Type("").Valid() {
		t.Error("unknown credit type reported valid")
	}
}

func TestBalancesGet(t *testing.T) {
	b := Balances{CVProcessing: 120, Interview: 30}

	if got := b.Get(TypeCVProcessing); got != 120 {
		t.Errorf("Get(cv_processing) = %d, want 120", got)
	}
	if got := b.Get(TypeInterview); got != 30 {
		t.Errorf("Get(interview) = %d, want 30", got)
	}
}
