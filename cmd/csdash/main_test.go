package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/referrush/csdash/internal/app"
	_ "github.com/referrush/csdash/internal/testing/guard"
)

func TestMainReturnsInTestMode(t *testing.T) {
	main()
}

func TestRunJobsUsage(t *testing.T) {
	cfg := &app.Config{RedisAddr: "127.0.0.1:0"}
	assert.ErrorContains(t, runJobs(context.Background(), cfg, nil), "usage")
	assert.ErrorContains(t, runJobs(context.Background(), cfg, []string{"trigger"}), "usage")
	assert.ErrorContains(t, runJobs(context.Background(), cfg, []string{"purge"}), "unknown jobs command")
}
