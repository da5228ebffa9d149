package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Snapshot(t *testing.T) {
	snapshot := IRArray{
		IRArray{IRString("Modules"), IRArray{}},
		IRArray{IRString("Round"), IRInt(4)},
		IRArray{IRString("Seeded"), IRBool(true)},
	}
	data, err := MarshalCanonical(snapshot)
	require.NoError(t, err)
	assert.Equal(t, `[["Modules",[]],["Round",4],["Seeded",true]]`, string(data))
}

func TestMarshalCanonical_ObjectKeyOrder(t *testing.T) {
	data, err := MarshalCanonical(IRObject{
		"\uFB01":     IRInt(3),
		"\U0001F600": IRInt(2),
		"b":          IRInt(1),
		"a":          IRObject{"y": IRInt(0), "x": IRInt(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":{\"x\":0,\"y\":0},\"b\":1,\"\U0001F600\":2,\"\uFB01\":3}", string(data))
}

func TestMarshalCanonical_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no html escaping", "<a & b>", `"<a & b>"`},
		{"nfc", "e\u0301", "\"\u00e9\""},
		{"line separators stay literal", "a\u2028b\u2029c", "\"a\u2028b\u2029c\""},
		{"escaped backslash before u2028 text", `\u2028`, `"\\u2028"`},
		{"control characters", "tab\there\n", `"tab\there\n"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalCanonical(IRString(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestMarshalCanonical_GoValues(t *testing.T) {
	data, err := MarshalCanonical([]any{"x", 1, int64(2), false, map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, `["x",1,2,false,{"k":"v"}]`, string(data))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null is forbidden"},
		{"ir null", IRNull{}, "null is forbidden"},
		{"nested null", IRArray{IRString("Winner"), IRNull{}}, "array[1]: null is forbidden"},
		{"object null", IRObject{"w": IRNull{}}, `value for key "w": null is forbidden`},
		{"float", 1.5, "floats are forbidden"},
		{"unsupported", struct{}{}, "unsupported type for canonical JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.in)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSnapshotDigest(t *testing.T) {
	entries := IRArray{IRArray{IRString("ReplicatedString"), IRString("hi")}}

	d1, err := SnapshotDigest("ReplicatedContainer", entries)
	require.NoError(t, err)
	d2, err := SnapshotDigest("ReplicatedContainer", IRArray{IRArray{IRString("ReplicatedString"), IRString("hi")}})
	require.NoError(t, err)
	assert.Len(t, d1, 64)
	assert.Equal(t, d1, d2)

	other, err := SnapshotDigest("ClientContainer", entries)
	require.NoError(t, err)
	assert.NotEqual(t, d1, other)

	changed, err := SnapshotDigest("ReplicatedContainer", IRArray{IRArray{IRString("ReplicatedString"), IRString("ho")}})
	require.NoError(t, err)
	assert.NotEqual(t, d1, changed)
}

func TestDigests_DomainSeparated(t *testing.T) {
	payload := IRArray{IRString("Title"), IRString("x")}

	snap, err := SnapshotDigest("set", payload)
	require.NoError(t, err)
	env, err := EnvelopeDigest("set", payload)
	require.NoError(t, err)
	assert.NotEqual(t, snap, env)
}

func TestDigests_RejectNull(t *testing.T) {
	_, err := EnvelopeDigest("set", IRArray{IRString("Winner"), IRNull{}})
	assert.ErrorContains(t, err, "EnvelopeDigest")

	_, err = SnapshotDigest("Arena", IRArray{IRNull{}})
	assert.ErrorContains(t, err, "SnapshotDigest")
}
