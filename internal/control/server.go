// Package control exposes reminder management as MCP tools, so any MCP
// client can add, edit and test reminders while the overlay host runs.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/notexe/focus-reminder/internal/overlay"
	"github.com/notexe/focus-reminder/internal/reminder"
)

const (
	serverName    = "focus-reminder"
	serverVersion = "1.0.0"

	// EndpointPath is where the streamable HTTP transport listens.
	EndpointPath = "/mcp"
)

// Service is the part of the application the tools drive.
type Service interface {
	List(ctx context.Context) ([]reminder.Definition, error)
	Add(ctx context.Context, d reminder.Definition) (*reminder.Definition, error)
	Update(ctx context.Context, id string, fields reminder.UpdateFields) (*reminder.Definition, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*reminder.Definition, error)
	Delete(ctx context.Context, id string) error
	GlobalEnabled(ctx context.Context) (bool, error)
	SetGlobalEnabled(ctx context.Context, enabled bool) error
	Test(ctx context.Context, content overlay.Content, displayMinutes int) error
	TestReminder(ctx context.Context, id string) error
	CloseOverlay(id string)
	CloseAllOverlays()
	SoundSettings(ctx context.Context) (reminder.SoundSettings, error)
	SetSoundSettings(ctx context.Context, s reminder.SoundSettings) (reminder.SoundSettings, error)
	PlaySound(ctx context.Context, volume int) error
}

// Server is the MCP server for reminder management.
type Server struct {
	mcpServer *server.MCPServer
	svc       Service
	log       zerolog.Logger

	http *server.StreamableHTTPServer
}

// NewServer creates the MCP server backed by svc.
func NewServer(svc Service, log zerolog.Logger) *Server {
	s := &Server{
		svc: svc,
		log: log,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeHTTP serves the tools over streamable HTTP on addr until Shutdown.
func (s *Server) ServeHTTP(addr string) error {
	s.http = server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(EndpointPath))
	s.log.Info().Str("addr", addr).Str("path", EndpointPath).Msg("control server listening")
	return s.http.Start(addr)
}

// ServeStdio serves the tools on stdin and stdout.
func (s *Server) ServeStdio() error {
	s.log.Info().Msg("control server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// Shutdown stops the HTTP transport.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) registerTools() {
	// add_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("add_reminder",
			mcp.WithDescription("Add a reminder that shows a full-screen overlay on an interval or at fixed times of day"),
			mcp.WithString("message", mcp.Required(), mcp.Description("Text shown in the overlay")),
			mcp.WithString("type", mcp.Description("interval or scheduled (default: interval)")),
			mcp.WithNumber("interval", mcp.Description("Minutes between overlays for interval reminders, 1-1440 (default: 30)")),
			mcp.WithString("times", mcp.Description("Comma-separated HH:MM times for scheduled reminders (e.g. 09:00,14:30)")),
			mcp.WithString("icon", mcp.Description("Emoji shown above the message (default: 💧)")),
			mcp.WithString("color", mcp.Description("Overlay color as #rrggbb")),
			mcp.WithNumber("display_minutes", mcp.Description("Minutes the overlay stays open (default: 1)")),
			mcp.WithBoolean("enabled", mcp.Description("Start enabled (default: true)")),
		),
		s.handleAddReminder,
	)

	// list_reminders
	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List all reminders and whether reminders are switched on globally"),
		),
		s.handleListReminders,
	)

	// update_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("update_reminder",
			mcp.WithDescription("Update a reminder's fields; its timer restarts with the new schedule"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("message", mcp.Description("New message")),
			mcp.WithString("type", mcp.Description("interval or scheduled")),
			mcp.WithNumber("interval", mcp.Description("New interval in minutes")),
			mcp.WithString("times", mcp.Description("New comma-separated HH:MM times")),
			mcp.WithString("icon", mcp.Description("New icon")),
			mcp.WithString("color", mcp.Description("New color")),
			mcp.WithNumber("display_minutes", mcp.Description("New display duration in minutes")),
		),
		s.handleUpdateReminder,
	)

	// delete_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("delete_reminder",
			mcp.WithDescription("Delete a reminder permanently and close its overlay"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDeleteReminder,
	)

	// toggle_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("toggle_reminder",
			mcp.WithDescription("Enable or disable one reminder"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("New state")),
		),
		s.handleToggleReminder,
	)

	// set_reminders_enabled
	s.mcpServer.AddTool(
		mcp.NewTool("set_reminders_enabled",
			mcp.WithDescription("Switch all reminders on or off"),
			mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("New global state")),
		),
		s.handleSetRemindersEnabled,
	)

	// test_reminder
	s.mcpServer.AddTool(
		mcp.NewTool("test_reminder",
			mcp.WithDescription("Show a test overlay now, either for a stored reminder or with the given content"),
			mcp.WithString("id", mcp.Description("Reminder to preview")),
			mcp.WithString("message", mcp.Description("Message when no id is given")),
			mcp.WithString("icon", mcp.Description("Icon when no id is given")),
			mcp.WithString("color", mcp.Description("Color when no id is given")),
			mcp.WithNumber("display_minutes", mcp.Description("Display duration when no id is given")),
		),
		s.handleTestReminder,
	)

	// close_overlay
	s.mcpServer.AddTool(
		mcp.NewTool("close_overlay",
			mcp.WithDescription("Close the overlay of one reminder, or all overlays when no id is given"),
			mcp.WithString("id", mcp.Description("Reminder ID")),
		),
		s.handleCloseOverlay,
	)

	// get_sound_settings
	s.mcpServer.AddTool(
		mcp.NewTool("get_sound_settings",
			mcp.WithDescription("Get the overlay sound settings"),
		),
		s.handleGetSoundSettings,
	)

	// set_sound_settings
	s.mcpServer.AddTool(
		mcp.NewTool("set_sound_settings",
			mcp.WithDescription("Change the overlay sound settings; they apply from the next overlay"),
			mcp.WithBoolean("enabled", mcp.Description("Play sound while an overlay is open")),
			mcp.WithNumber("volume", mcp.Description("Volume 0-100")),
		),
		s.handleSetSoundSettings,
	)

	// play_sound
	s.mcpServer.AddTool(
		mcp.NewTool("play_sound",
			mcp.WithDescription("Play the notification sound once to try a volume"),
			mcp.WithNumber("volume", mcp.Description("Volume 0-100 (default: the saved volume)")),
		),
		s.handlePlaySound,
	)
}

// reminderView is a definition as shown to tool callers.
type reminderView struct {
	reminder.Definition
	Schedule string `json:"schedule"`
}

func view(d reminder.Definition) reminderView {
	return reminderView{Definition: d, Schedule: d.Schedule()}
}

func (s *Server) handleAddReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message := req.GetString("message", "")
	if strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("message is required"), nil
	}

	d := reminder.Definition{
		Message: message,
		Mode:    reminder.Mode(req.GetString("type", string(reminder.ModeInterval))),
		Icon:    req.GetString("icon", ""),
		Color:   req.GetString("color", ""),
		Times:   splitTimes(req.GetString("times", "")),
		Enabled: req.GetBool("enabled", true),
	}

	var err error
	if d.IntervalMinutes, err = intArg(req, "interval", 0); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if d.DisplayMinutes, err = intArg(req, "display_minutes", 0); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	added, err := s.svc.Add(ctx, d)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add reminder: %v", err)), nil
	}

	output, _ := json.MarshalIndent(view(*added), "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleListReminders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reminders, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list reminders: %v", err)), nil
	}

	if len(reminders) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}

	on, err := s.svc.GlobalEnabled(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read global toggle: %v", err)), nil
	}

	views := make([]reminderView, len(reminders))
	for i, d := range reminders {
		views[i] = view(d)
	}

	output, _ := json.MarshalIndent(struct {
		Enabled   bool           `json:"enabled"`
		Reminders []reminderView `json:"reminders"`
	}{on, views}, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleUpdateReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	var fields reminder.UpdateFields

	if v, ok := stringArg(req, "message"); ok {
		fields.Message = &v
	}
	if v, ok := stringArg(req, "icon"); ok {
		fields.Icon = &v
	}
	if v, ok := stringArg(req, "color"); ok {
		fields.Color = &v
	}
	if v, ok := stringArg(req, "type"); ok {
		mode := reminder.Mode(v)
		fields.Mode = &mode
	}
	if v, ok := stringArg(req, "times"); ok {
		fields.Times = splitTimes(v)
		if fields.Times == nil {
			fields.Times = []string{}
		}
	}
	if _, ok := req.GetArguments()["interval"]; ok {
		v, err := intArg(req, "interval", 0)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fields.IntervalMinutes = &v
	}
	if _, ok := req.GetArguments()["display_minutes"]; ok {
		v, err := intArg(req, "display_minutes", 0)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fields.DisplayMinutes = &v
	}

	updated, err := s.svc.Update(ctx, id, fields)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update reminder: %v", err)), nil
	}

	output, _ := json.MarshalIndent(view(*updated), "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleDeleteReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete reminder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s deleted.", id)), nil
}

func (s *Server) handleToggleReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	enabled, ok := boolArg(req, "enabled")
	if !ok {
		return mcp.NewToolResultError("enabled is required"), nil
	}

	if _, err := s.svc.SetEnabled(ctx, id, enabled); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to toggle reminder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Reminder %s %s.", id, onOff(enabled))), nil
}

func (s *Server) handleSetRemindersEnabled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled, ok := boolArg(req, "enabled")
	if !ok {
		return mcp.NewToolResultError("enabled is required"), nil
	}

	if err := s.svc.SetGlobalEnabled(ctx, enabled); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to switch reminders: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("All reminders %s.", onOff(enabled))), nil
}

func (s *Server) handleTestReminder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("id", ""); id != "" {
		if err := s.svc.TestReminder(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to test reminder: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Test overlay for %s shown.", id)), nil
	}

	minutes, err := intArg(req, "display_minutes", reminder.DefaultDisplayMinutes)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := overlay.Content{
		Icon:    req.GetString("icon", ""),
		Message: req.GetString("message", ""),
		Color:   req.GetString("color", ""),
	}
	if err := s.svc.Test(ctx, content, minutes); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to test reminder: %v", err)), nil
	}
	return mcp.NewToolResultText("Test overlay shown."), nil
}

func (s *Server) handleCloseOverlay(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("id", ""); id != "" {
		s.svc.CloseOverlay(id)
		return mcp.NewToolResultText(fmt.Sprintf("Overlay for %s closed.", id)), nil
	}

	s.svc.CloseAllOverlays()
	return mcp.NewToolResultText("All overlays closed."), nil
}

func (s *Server) handleGetSoundSettings(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings, err := s.svc.SoundSettings(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read sound settings: %v", err)), nil
	}

	output, _ := json.MarshalIndent(settings, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handleSetSoundSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings, err := s.svc.SoundSettings(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read sound settings, starting from defaults")
		settings = reminder.DefaultSoundSettings()
	}

	if v, ok := boolArg(req, "enabled"); ok {
		settings.Enabled = v
	}
	if _, ok := req.GetArguments()["volume"]; ok {
		v, err := intArg(req, "volume", settings.Volume)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		settings.Volume = v
	}

	saved, err := s.svc.SetSoundSettings(ctx, settings)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save sound settings: %v", err)), nil
	}

	output, _ := json.MarshalIndent(saved, "", "  ")
	return mcp.NewToolResultText(string(output)), nil
}

func (s *Server) handlePlaySound(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	volume := reminder.DefaultVolume
	if settings, err := s.svc.SoundSettings(ctx); err == nil {
		volume = settings.Volume
	}

	volume, err := intArg(req, "volume", volume)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.svc.PlaySound(ctx, volume); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Played sound at volume %d.", reminder.ClampVolume(volume))), nil
}

func stringArg(req mcp.CallToolRequest, key string) (string, bool) {
	v, ok := req.GetArguments()[key].(string)
	return v, ok
}

func boolArg(req mcp.CallToolRequest, key string) (bool, bool) {
	v, ok := req.GetArguments()[key].(bool)
	return v, ok
}

// intArg reads a whole number. JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, def int) (int, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("%s must be a whole number", key)
		}
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, errors.New(key + " must be a number")
	}
}

// splitTimes turns "09:00, 14:30" into its entries.
func splitTimes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
