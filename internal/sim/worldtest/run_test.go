package worldtest

import (
	"context"
	"testing"
	"time"

	"taintcraft.ai/internal/sim/voxel"
	world "taintcraft.ai/internal/sim/world"
)

func TestRun_SubmitAppliesBetweenTicks(t *testing.T) {
	h := NewHarness(t, DefaultConfig("run"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.W.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()

	res, err := h.W.Submit(callCtx, world.Command{Kind: world.CmdAddSeed, Pos: voxel.Vec3i{X: 1, Y: 30, Z: 1}})
	if err != nil {
		t.Fatalf("add seed: %v", err)
	}
	if res.AgentID == "" {
		t.Fatalf("empty agent id")
	}
	res, err = h.W.Submit(callCtx, world.Command{Kind: world.CmdAgents})
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(res.Agents) != 1 || res.Agents[0].Kind != "seed" {
		t.Fatalf("agents: %+v", res.Agents)
	}
	res, err = h.W.Submit(callCtx, world.Command{Kind: world.CmdSnapshot})
	if err != nil || res.Snapshot == nil {
		t.Fatalf("snapshot: %v", err)
	}
	if _, err := h.W.Submit(callCtx, world.Command{Kind: "BOGUS"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}

	h.W.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("world.Run did not exit")
	}
	if _, err := h.W.Submit(callCtx, world.Command{Kind: world.CmdAgents}); err != world.ErrStopped {
		t.Fatalf("submit after stop: %v", err)
	}
}
