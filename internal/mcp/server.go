package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fankserver/transcribe-web/internal/jobs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
)

// Server exposes transcription jobs as MCP tools
type Server struct {
	launcher  *jobs.Launcher
	reporter  *jobs.Reporter
	store     *jobs.Store
	mcpServer *mcp.Server
}

// TranscribeFileInput is the input for the transcribe_file tool
type TranscribeFileInput struct {
	Path     string `json:"path" jsonschema:"absolute path of an mp3, mp4, wav or m4a file on the server"`
	Language string `json:"language,omitempty" jsonschema:"language code, or auto to detect"`
}

// JobInput identifies a job
type JobInput struct {
	JobID string `json:"jobId" jsonschema:"the job id returned by transcribe_file"`
}

// EmptyInput for tools that don't need parameters
type EmptyInput struct{}

// NewServer creates a new MCP server using the official SDK
func NewServer(launcher *jobs.Launcher, reporter *jobs.Reporter, store *jobs.Store, version string) *Server {
	s := &Server{
		launcher: launcher,
		reporter: reporter,
		store:    store,
	}

	impl := &mcp.Implementation{
		Name:    "transcribe-web",
		Version: version,
	}
	s.mcpServer = mcp.NewServer(impl, nil)

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "transcribe_file",
		Description: "Start transcribing an audio or video file from local disk. Returns a job id to poll.",
	}, s.handleTranscribeFile)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_job_status",
		Description: "Get the status and progress of a transcription job",
	}, s.handleGetJobStatus)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_transcript",
		Description: "Get the transcript of a finished transcription job",
	}, s.handleGetTranscript)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List all transcription jobs",
	}, s.handleListJobs)
}

// Run serves MCP over stdio until the context is cancelled
func (s *Server) Run(ctx context.Context) error {
	logrus.Info("Starting MCP server with official SDK")
	return s.mcpServer.Run(ctx, mcp.NewStdioTransport())
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func (s *Server) handleTranscribeFile(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[TranscribeFileInput]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments

	jobID, err := s.launcher.SubmitFile(ctx, args.Path, args.Language)
	if err != nil {
		var verr *jobs.ValidationError
		if errors.As(err, &verr) {
			return textResult(fmt.Sprintf("Rejected: %s", verr.Message)), nil
		}
		return nil, fmt.Errorf("failed to submit file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"job_id": jobID,
		"path":   args.Path,
	}).Info("Transcription job submitted via MCP")

	return textResult(fmt.Sprintf("Started transcription job %s", jobID)), nil
}

func (s *Server) handleGetJobStatus(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[JobInput]) (*mcp.CallToolResultFor[any], error) {
	return textResult(formatJob(s.reporter.Poll(params.Arguments.JobID))), nil
}

func (s *Server) handleGetTranscript(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[JobInput]) (*mcp.CallToolResultFor[any], error) {
	jobID := params.Arguments.JobID

	result, err := s.reporter.FetchResult(jobID)
	if err != nil {
		job := s.reporter.Poll(jobID)
		switch job.Status {
		case jobs.StatusNotFound:
			return nil, fmt.Errorf("job not found: %s", jobID)
		case jobs.StatusError:
			return textResult(fmt.Sprintf("Job %s failed: %s", jobID, job.Error)), nil
		default:
			return textResult(fmt.Sprintf("Job %s is not finished yet (%s, %d%%)", jobID, job.Status, job.Progress)), nil
		}
	}

	if result.Text == "" {
		return textResult("Transcript is empty"), nil
	}
	return textResult(result.Text), nil
}

func (s *Server) handleListJobs(ctx context.Context, ss *mcp.ServerSession, params *mcp.CallToolParamsFor[EmptyInput]) (*mcp.CallToolResultFor[any], error) {
	list := s.store.List()
	if len(list) == 0 {
		return textResult("No jobs found"), nil
	}

	var b strings.Builder
	b.WriteString("Transcription jobs:\n")
	for _, job := range list {
		fmt.Fprintf(&b, "- %s\n", formatJob(job))
	}
	return textResult(strings.TrimRight(b.String(), "\n")), nil
}

func formatJob(job jobs.Job) string {
	line := fmt.Sprintf("%s: %s (%d%%)", job.ID, job.Status, job.Progress)
	switch job.Status {
	case jobs.StatusDone:
		line += fmt.Sprintf(" result=%s", job.ResultFilename)
	case jobs.StatusError:
		line += fmt.Sprintf(" error=%s", job.Error)
	}
	return line
}
