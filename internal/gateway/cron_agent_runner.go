// Package gateway provides the main Meridian gateway server.
//
// cron_agent_runner.go adapts the agent runtime to cron.AgentRunner so
// `type: agent` cron jobs actually drive a turn instead of failing with
// "agent runner not configured".
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DewminaUdayashan/meridian/internal/cron"
	"github.com/DewminaUdayashan/meridian/internal/sessions"
	"github.com/DewminaUdayashan/meridian/pkg/models"
)

// cronAgentRunner implements cron.AgentRunner against the gateway's agent
// runtime: it resolves (or creates) a session for the job's channel/peer,
// sends the job's rendered message content through a full runtime turn,
// and delivers the response back out through the channel the job targets.
type cronAgentRunner struct {
	server *Server
}

// newCronAgentRunner constructs the adapter wired into the cron scheduler
// at startup, once the agent runtime exists.
func newCronAgentRunner(s *Server) cron.AgentRunner {
	return &cronAgentRunner{server: s}
}

func (r *cronAgentRunner) Run(ctx context.Context, job *cron.Job) error {
	runtime, err := r.server.ensureRuntime(ctx)
	if err != nil {
		return fmt.Errorf("ensure runtime: %w", err)
	}

	channelType := models.ChannelType(job.Message.Channel)
	agentID := job.TargetAgentID
	if agentID == "" {
		agentID = r.server.config.Session.DefaultAgentID
	}
	if agentID == "" {
		agentID = "default"
	}

	session, err := r.resolveSession(ctx, agentID, channelType, job.Message.ChannelID)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Channel:   channelType,
		ChannelID: job.Message.ChannelID,
		Direction: models.DirectionInbound,
		Role:      models.RoleUser,
		Content:   job.Message.Content,
		CreatedAt: time.Now(),
		Metadata: map[string]any{
			"cron_job_id":   job.ID,
			"cron_job_name": job.Name,
		},
	}

	chunks, err := runtime.Process(ctx, session, msg)
	if err != nil {
		return fmt.Errorf("process message: %w", err)
	}

	var response strings.Builder
	var runErr error
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			runErr = chunk.Error
			continue
		}
		if chunk.Text != "" {
			response.WriteString(chunk.Text)
		}
	}
	if runErr != nil && response.Len() == 0 {
		return runErr
	}

	if channelType != "" && job.Message.ChannelID != "" {
		if err := r.server.SendProactiveMessage(ctx, channelType, job.Message.ChannelID, response.String()); err != nil {
			r.server.logger.Warn("cron agent run produced a response but delivery failed",
				"job_id", job.ID, "channel", channelType, "error", err)
		}
	}
	return nil
}

func (r *cronAgentRunner) resolveSession(ctx context.Context, agentID string, channel models.ChannelType, channelID string) (*models.Session, error) {
	if r.server.sessions == nil {
		return &models.Session{ID: uuid.NewString(), AgentID: agentID, Channel: channel, ChannelID: channelID}, nil
	}
	key := sessions.SessionKey(agentID, channel, channelID)
	return r.server.sessions.GetOrCreate(ctx, key, agentID, channel, channelID)
}
