package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDigits(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ascii untouched", in: "93701234567", want: "93701234567"},
		{name: "persian digits", in: "۹۳۷۰۱۲۳۴۵۶۷", want: "93701234567"},
		{name: "arabic digits", in: "٩٣٧٠١٢٣٤٥٦٧", want: "93701234567"},
		{name: "mixed", in: "شارژ ۵۰", want: "شارژ 50"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDigits(tt.in))
		})
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "valid", in: "93701234567", want: "93701234567"},
		{name: "valid with spaces", in: " 93701234567 ", want: "93701234567"},
		{name: "valid persian digits", in: "۹۳۷۰۱۲۳۴۵۶۷", want: "93701234567"},
		{name: "wrong prefix", in: "07012345678", wantErr: true},
		{name: "short prefix variant", in: "0701234567", wantErr: true},
		{name: "too short", in: "9370123456", wantErr: true},
		{name: "too long", in: "937012345678", wantErr: true},
		{name: "non-digit", in: "9370123456x", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePhone(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhoneFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateProofSize(t *testing.T) {
	const (
		minBytes = 10 * 1024
		maxBytes = 5 * 1024 * 1024
	)

	if err := ValidateProofSize(minBytes, minBytes, maxBytes); err != nil {
		t.Fatalf("exact minimum size must pass, got %v", err)
	}
	if err := ValidateProofSize(maxBytes, minBytes, maxBytes); err != nil {
		t.Fatalf("exact maximum size must pass, got %v", err)
	}

	err := ValidateProofSize(minBytes-1, minBytes, maxBytes)
	if !errors.Is(err, ErrProofTooSmall) {
		t.Fatalf("expected ErrProofTooSmall one byte below minimum, got %v", err)
	}

	err = ValidateProofSize(maxBytes+1, minBytes, maxBytes)
	if !errors.Is(err, ErrProofTooLarge) {
		t.Fatalf("expected ErrProofTooLarge one byte above maximum, got %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("۱۳۰۰")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), v)

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, ErrNotANumber)
}

func TestParseRating(t *testing.T) {
	r, err := ParseRating("۵")
	require.NoError(t, err)
	assert.Equal(t, 5, r)

	_, err = ParseRating("0")
	assert.ErrorIs(t, err, ErrRatingOutOfRange)

	_, err = ParseRating("6")
	assert.ErrorIs(t, err, ErrRatingOutOfRange)
}
