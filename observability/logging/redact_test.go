package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskFieldRedactsSensitiveKeys(t *testing.T) {
	attr := MaskField("caller", "0x0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a")
	require.Equal(t, RedactedValue, attr.Value.String())

	attr = MaskField("memo", "rent for march")
	require.Equal(t, RedactedValue, attr.Value.String())
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("escrow_id", "42")
	require.Equal(t, slog.StringValue("42"), attr.Value)

	attr = MaskField("route", "escrow")
	require.Equal(t, slog.StringValue("escrow"), attr.Value)

	attr = MaskField("caller", "")
	require.Equal(t, slog.StringValue(""), attr.Value)
}

func TestRedactionAllowlistSortedAndStable(t *testing.T) {
	keys := RedactionAllowlist()
	require.NotEmpty(t, keys)
	require.IsIncreasing(t, keys)
	for _, key := range keys {
		require.True(t, IsAllowlisted(key))
	}
	require.False(t, IsAllowlisted("recipient"))
}
