package world

import (
	"context"
	"errors"
	"fmt"

	"taintcraft.ai/internal/persistence/snapshot"
	"taintcraft.ai/internal/sim/taint"
	"taintcraft.ai/internal/sim/voxel"
)

type CommandKind string

const (
	CmdAddPlayer   CommandKind = "ADD_PLAYER"
	CmdAddSeed     CommandKind = "ADD_SEED"
	CmdRemoveAgent CommandKind = "REMOVE_AGENT"
	CmdMoveAgent   CommandKind = "MOVE_AGENT"
	CmdSetCell     CommandKind = "SET_CELL"
	CmdForceSpread CommandKind = "FORCE_SPREAD"
	CmdHarvest     CommandKind = "HARVEST"
	CmdSnapshot    CommandKind = "SNAPSHOT"
	CmdAgents      CommandKind = "AGENTS"
)

// Command is a request applied between ticks of a running world.
type Command struct {
	Kind    CommandKind
	Pos     voxel.Vec3i
	AgentID string
	Cell    voxel.Cell

	resp chan CommandResult
}

type CommandResult struct {
	AgentID  string
	OK       bool
	Spread   taint.SpreadResult
	Drops    []taint.Drop
	Snapshot *snapshot.SnapshotV1
	Agents   []AgentView
	Err      error
}

var ErrStopped = errors.New("world stopped")

// Submit queues cmd for the world loop and waits for its result.
func (w *World) Submit(ctx context.Context, cmd Command) (CommandResult, error) {
	cmd.resp = make(chan CommandResult, 1)
	select {
	case w.cmds <- cmd:
	case <-w.stop:
		return CommandResult{}, ErrStopped
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
	select {
	case res := <-cmd.resp:
		return res, res.Err
	case <-w.stop:
		return CommandResult{}, ErrStopped
	case <-ctx.Done():
		return CommandResult{}, ctx.Err()
	}
}

func (w *World) apply(cmd Command) {
	var res CommandResult
	switch cmd.Kind {
	case CmdAddPlayer:
		res.AgentID, res.OK = w.AddPlayer(cmd.Pos), true
	case CmdAddSeed:
		res.AgentID, res.OK = w.AddSeed(cmd.Pos), true
	case CmdRemoveAgent:
		res.OK = w.RemoveAgent(cmd.AgentID)
	case CmdMoveAgent:
		res.OK = w.MoveAgent(cmd.AgentID, cmd.Pos)
	case CmdSetCell:
		w.Place(cmd.Pos, cmd.Cell)
		res.OK = true
	case CmdForceSpread:
		res.Spread = w.ForceSpread(cmd.Pos)
		res.OK = res.Spread.Converted
	case CmdHarvest:
		res.Drops, res.OK = w.Harvest(cmd.Pos)
	case CmdSnapshot:
		s := w.ExportSnapshot()
		res.Snapshot, res.OK = &s, true
	case CmdAgents:
		res.Agents, res.OK = w.Agents(), true
	default:
		res.Err = fmt.Errorf("unknown command %q", cmd.Kind)
	}
	if cmd.resp != nil {
		cmd.resp <- res
	}
}
