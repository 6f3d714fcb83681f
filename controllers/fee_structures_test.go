package controllers

import (
	"strings"
	"testing"

	"greenvale_go/models"
)

func TestFeeStructureRequestValidate(t *testing.T) {
	base := feeStructureRequest{
		GradeID:        1,
		TermID:         2,
		AcademicYearID: 3,
		BasicFee:       3000,
		AdditionalCharges: []models.FeeCharge{
			{Description: "Transport", Amount: 1200},
			{Description: "Lunch", Amount: 800},
		},
		TotalFee: 5000,
	}

	tests := []struct {
		name    string
		mutate  func(r *feeStructureRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *feeStructureRequest) {}, wantErr: false},
		{name: "total short of charges", mutate: func(r *feeStructureRequest) {
			r.TotalFee = 4500
		}, wantErr: true},
		{name: "total above charges", mutate: func(r *feeStructureRequest) {
			r.TotalFee = 5500
		}, wantErr: true},
		{name: "no charges", mutate: func(r *feeStructureRequest) {
			r.AdditionalCharges = nil
			r.TotalFee = 3000
		}, wantErr: false},
		{name: "rounding within tolerance", mutate: func(r *feeStructureRequest) {
			r.BasicFee = 3000.001
			r.TotalFee = 5000.002
		}, wantErr: false},
		{name: "negative charge", mutate: func(r *feeStructureRequest) {
			r.AdditionalCharges = []models.FeeCharge{{Description: "Discount", Amount: -500}}
			r.TotalFee = 2500
		}, wantErr: true},
		{name: "negative basic fee", mutate: func(r *feeStructureRequest) {
			r.BasicFee = -100
		}, wantErr: true},
		{name: "missing grade", mutate: func(r *feeStructureRequest) {
			r.GradeID = 0
		}, wantErr: true},
		{name: "omitted total recomputed", mutate: func(r *feeStructureRequest) {
			r.TotalFee = 0
		}, wantErr: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			err := req.validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}

	omitted := base
	omitted.TotalFee = 0
	if err := omitted.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if omitted.TotalFee != 5000 {
		t.Fatalf("expected recomputed total 5000, got %v", omitted.TotalFee)
	}
}

func TestBuildColumnIndex(t *testing.T) {
	header := []string{"Grade", " Year ", "Term", "BasicFee", "TotalFee", "Charges"}
	col := buildColumnIndex(header)

	if idx, ok := col["Year"]; !ok || idx != 1 {
		t.Fatalf("expected trimmed Year at index 1, got %d (found=%v)", idx, ok)
	}
	if idx, ok := col["TotalFee"]; !ok || idx != 4 {
		t.Fatalf("expected TotalFee at index 4, got %d (found=%v)", idx, ok)
	}
	if _, ok := col["Missing"]; ok {
		t.Fatal("unexpected column Missing")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("fees.xlsx"); got != "fees.xlsx" {
		t.Fatalf("clean name changed: %q", got)
	}
	for _, input := range []string{"../../etc/passwd", "dir\\file.csv", "a/b/c.xlsx"} {
		got := sanitizeFilename(input)
		for _, bad := range []string{"/", "\\", ".."} {
			if strings.Contains(got, bad) {
				t.Errorf("sanitizeFilename(%q) = %q still contains %q", input, got, bad)
			}
		}
	}
}
