package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	issued := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		template string
		seq      int64
		want     string
	}{
		{template: InvoiceNumberTemplate, seq: 7, want: "INV-202603-0007"},
		{template: ReceiptNumberTemplate, seq: 12345, want: "RCT-202603-12345"},
		{template: "{YY}{MM}{DD}-{SEQ}", seq: 3, want: "260307-3"},
	}
	for _, tt := range tests {
		got, err := FormatNumber(tt.template, issued, tt.seq)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatNumberRejects(t *testing.T) {
	issued := time.Now()

	_, err := FormatNumber("", issued, 1)
	assert.Error(t, err)
	_, err = FormatNumber(InvoiceNumberTemplate, issued, 0)
	assert.Error(t, err)
	_, err = FormatNumber("INV-{NOPE}", issued, 1)
	assert.Error(t, err)
}
