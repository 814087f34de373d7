package resources_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AHINK/mesos/pkg/resources"
)

func TestParseRoundTrip(t *testing.T) {
	r, err := resources.Parse("cpus:2;mem:1024;ports:[31000-32000];labels:{gpu,ssd}")
	require.NoError(t, err)
	require.Equal(t, "cpus:2;labels:{gpu,ssd};mem:1024;ports:[31000-32000]", r.String())
}

func TestAddSubtractRoundTrip(t *testing.T) {
	total, err := resources.Parse("cpus:4;mem:2048")
	require.NoError(t, err)
	used, err := resources.Parse("cpus:1;mem:512")
	require.NoError(t, err)

	free, err := resources.Subtract(total, used)
	require.NoError(t, err)

	back := resources.Add(free, used)
	require.True(t, back.Equal(total))
}

func TestSubtractUnderflow(t *testing.T) {
	total, _ := resources.Parse("cpus:1;mem:512")
	ask, _ := resources.Parse("cpus:2;mem:512")
	_, err := resources.Subtract(total, ask)
	require.Error(t, err)
}

func TestContains(t *testing.T) {
	offer, _ := resources.Parse("cpus:2;mem:1024")
	task, _ := resources.Parse("cpus:1;mem:512")
	require.True(t, offer.Contains(task))

	tooBig, _ := resources.Parse("cpus:3;mem:512")
	require.False(t, offer.Contains(tooBig))
}

func TestDominantShare(t *testing.T) {
	total, _ := resources.Parse("cpus:10;mem:100")
	allocated, _ := resources.Parse("cpus:2;mem:40")

	name, share := allocated.Dominant(total)
	require.Equal(t, "mem", name)
	require.InDelta(t, 0.4, share, 1e-9)
}

func TestRangeSubtractFragments(t *testing.T) {
	total, _ := resources.Parse("ports:[31000-31010]")
	used, _ := resources.Parse("ports:[31002-31004]")
	rem, err := resources.Subtract(total, used)
	require.NoError(t, err)
	require.Equal(t, "ports:[31000-31001,31005-31010]", rem.String())
}

func TestIsEmpty(t *testing.T) {
	z := resources.New()
	require.True(t, z.IsEmpty())

	nz, _ := resources.Parse("cpus:1")
	require.False(t, nz.IsEmpty())
}
