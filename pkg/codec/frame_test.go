package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AHINK/mesos/pkg/codec"
)

type samplePayload struct {
	A string
	B int
}

func TestFrameRoundTrip(t *testing.T) {
	body, err := codec.EncodeBody(samplePayload{A: "x", B: 7})
	require.NoError(t, err)

	want := codec.Frame{Name: "S2M_REGISTER_SLAVE", From: "scheduler(127.0.0.1:9)", Body: body}

	var buf bytes.Buffer
	require.NoError(t, codec.WriteFrame(&buf, want))

	got, err := codec.ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, want.Name, got.Name)
	require.Equal(t, want.From, got.From)

	var payload samplePayload
	require.NoError(t, codec.DecodeBody(got.Body, &payload))
	require.Equal(t, samplePayload{A: "x", B: 7}, payload)
}

func TestFrameBodyForwardCompatible(t *testing.T) {
	type v1 struct{ A string }
	type v2 struct {
		A string
		B int
	}

	encoded, err := codec.EncodeBody(v2{A: "x", B: 9})
	require.NoError(t, err)

	var decoded v1
	require.NoError(t, codec.DecodeBody(encoded, &decoded))
	require.Equal(t, "x", decoded.A)
}
