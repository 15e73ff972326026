package main

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	err := cmd.Execute()
	return out.String(), err
}

var twentyYear = []string{"--issue", "2019-01-01", "--maturity", "2039-01-01", "--coupon", "5"}

func TestCashFlowsCmd(t *testing.T) {
	out, err := run(t, append([]string{"cashflows"}, twentyYear...)...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 41)
	assert.Equal(t, "2019-07-01\t2.500000\t0.00", lines[1])
	assert.Equal(t, "2039-01-01\t2.500000\t100.00", lines[40])
}

func TestAccruedCmd(t *testing.T) {
	out, err := run(t, append([]string{"accrued", "--date", "2021-01-01", "--clean", "99"}, twentyYear...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Accrued Interest: 0.000000")
	assert.Contains(t, out, "Next Coupon Date: 2021-07-01")
	assert.Contains(t, out, "Dirty Price: 99.000000")
}

func TestYtmCmd(t *testing.T) {
	out, err := run(t, append([]string{"ytm", "--clean", "100", "--date", "2021-01-01"}, twentyYear...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Yield to Maturity (Compounded): 5.000000%")

	out, err = run(t, append([]string{"ytm", "--yield", "5", "--date", "2021-01-01"}, twentyYear...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Clean Price: 100.000000")

	_, err = run(t, append([]string{"ytm", "--date", "2021-01-01"}, twentyYear...)...)
	assert.Error(t, err)
}

func TestHpyCmd(t *testing.T) {
	args := append([]string{"hpy",
		"--buy-date", "2021-01-01", "--buy-price", "100",
		"--sell-date", "2021-07-01", "--sell-price", "100",
		"--repo",
	}, twentyYear...)

	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Coupons Received: 2.500000")
	assert.Contains(t, out, "Holding Period Return: 2.500000%")
	assert.Contains(t, out, "Repo Return: 2.500000%")
}

func TestUnknownCode(t *testing.T) {
	_, err := run(t, "cashflows", "--code", "missing")
	assert.Error(t, err)

	_, err = run(t, "cashflows")
	assert.Error(t, err)
}
