package api

import "encoding/json"

// VisitorSystemInfo is best-effort client context sent with registration.
type VisitorSystemInfo struct {
	SourceDetail    string `json:"source_detail,omitempty"`
	Browser         string `json:"browser,omitempty"`
	OperatingSystem string `json:"operating_system,omitempty"`
}

// RegisterVisitorRequest is the body for POST /v1/visitors/register.
type RegisterVisitorRequest struct {
	PlatformAPIKey string             `json:"platform_api_key"`
	Name           string             `json:"name,omitempty"`
	Source         string             `json:"source,omitempty"`
	SystemInfo     *VisitorSystemInfo `json:"system_info,omitempty"`
	Timezone       string             `json:"timezone,omitempty"`
}

// RegisterVisitorResponse is the platform's registration result.
type RegisterVisitorResponse struct {
	ID             string `json:"id"`
	PlatformOpenID string `json:"platform_open_id"`
	ProjectID      string `json:"project_id"`
	PlatformID     string `json:"platform_id"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	ChannelID      string `json:"channel_id"`
	ChannelType    int    `json:"channel_type"`
	IMToken        string `json:"im_token"`
}

// Pull modes for history sync.
const (
	PullModeDown = 0 // older messages
	PullModeUp   = 1 // newer messages
)

// SyncMessagesRequest is the body for POST /v1/visitors/messages/sync.
type SyncMessagesRequest struct {
	PlatformAPIKey  string `json:"platform_api_key"`
	ChannelID       string `json:"channel_id"`
	ChannelType     int    `json:"channel_type"`
	StartMessageSeq int64  `json:"start_message_seq"`
	EndMessageSeq   int64  `json:"end_message_seq"`
	Limit           int    `json:"limit"`
	PullMode        int    `json:"pull_mode"`
}

// SettingFlags decodes the per-message setting bits relevant to streams.
type SettingFlags struct {
	Receipt bool `json:"receipt,omitempty"`
	Stream  bool `json:"stream,omitempty"`
	Topic   bool `json:"topic,omitempty"`
}

// HistoryMessage is one record in a sync response.
type HistoryMessage struct {
	Header       map[string]any  `json:"header,omitempty"`
	Setting      int             `json:"setting,omitempty"`
	MessageID    int64           `json:"message_id"`
	MessageIDStr string          `json:"message_id_str,omitempty"`
	ClientMsgNo  string          `json:"client_msg_no,omitempty"`
	MessageSeq   int64           `json:"message_seq"`
	FromUID      string          `json:"from_uid"`
	ChannelID    string          `json:"channel_id"`
	ChannelType  int             `json:"channel_type"`
	Timestamp    int64           `json:"timestamp"` // seconds
	Payload      json.RawMessage `json:"payload"`
	End          int             `json:"end,omitempty"`
	EndReason    string          `json:"end_reason,omitempty"`
	Error        string          `json:"error,omitempty"` // AI-side processing error
	StreamData   string          `json:"stream_data,omitempty"`
	SettingFlags *SettingFlags   `json:"setting_flags,omitempty"`
}

// CompletedStream reports whether this record is a finished stream whose
// buffered text should be rendered instead of the raw payload.
func (m HistoryMessage) CompletedStream() bool {
	return m.SettingFlags != nil && m.SettingFlags.Stream && m.End == 1 && m.StreamData != ""
}

// SyncMessagesResponse is the paginated history result.
type SyncMessagesResponse struct {
	StartMessageSeq int64            `json:"start_message_seq"`
	EndMessageSeq   int64            `json:"end_message_seq"`
	More            int              `json:"more"` // 0=no more, 1=has more
	Messages        []HistoryMessage `json:"messages"`
}

// ChannelInfo is channel/staff metadata from GET /v1/channels/info.
type ChannelInfo struct {
	Name        string           `json:"name,omitempty"`
	Avatar      string           `json:"avatar,omitempty"`
	ChannelID   string           `json:"channel_id,omitempty"`
	ChannelType int              `json:"channel_type,omitempty"`
	EntityType  string           `json:"entity_type,omitempty"` // "visitor" | "staff"
	Extra       ChannelInfoExtra `json:"extra,omitempty"`
}

// ChannelInfoExtra carries fallback display fields.
type ChannelInfoExtra struct {
	Name      string `json:"name,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// CompletionRequest triggers AI processing of a just-sent text message.
// Streaming delivery arrives via the transport's custom events, not this
// HTTP response.
type CompletionRequest struct {
	APIKey                       string `json:"api_key"`
	Message                      string `json:"message"`
	FromUID                      string `json:"from_uid"`
	ChannelID                    string `json:"channel_id,omitempty"`
	ChannelType                  int    `json:"channel_type,omitempty"`
	WukongIMOnly                 bool   `json:"wukongim_only"`
	ForwardUserMessageToWukongIM bool   `json:"forward_user_message_to_wukongim"`
	Stream                       bool   `json:"stream"`
}

// CancelRunRequest is the body for POST /v1/ai/runs/cancel-by-client.
type CancelRunRequest struct {
	PlatformAPIKey string `json:"platform_api_key"`
	ClientMsgNo    string `json:"client_msg_no"`
	Reason         string `json:"reason"`
}

// RouteResponse is the dynamic transport endpoint lookup result. The field
// set varies across deployments; resolution applies an ordered fallback.
type RouteResponse struct {
	WSSAddr   string `json:"wss_addr,omitempty"`
	WSAddr    string `json:"ws_addr,omitempty"`
	WS        string `json:"ws,omitempty"`
	WSURL     string `json:"ws_url,omitempty"`
	WSAddr2   string `json:"wsAddr,omitempty"`
	Websocket string `json:"websocket,omitempty"`
	WSS       string `json:"wss,omitempty"`
	WSAddrTLS string `json:"ws_addr_tls,omitempty"`
}

// ActivityRequest is the body for POST /v1/visitors/activities.
type ActivityRequest struct {
	ID             string           `json:"id,omitempty"`
	PlatformAPIKey string           `json:"platform_api_key"`
	VisitorID      string           `json:"visitor_id"`
	ActivityType   string           `json:"activity_type"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Context        *ActivityContext `json:"context,omitempty"`
}

// ActivityContext is optional page context attached to an activity.
type ActivityContext struct {
	PageURL   string         `json:"page_url,omitempty"`
	Referrer  string         `json:"referrer,omitempty"`
	ChannelID string         `json:"channel_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Visitor activity types.
const (
	ActivitySessionStart = "session_start"
	ActivitySessionEnd   = "session_end"
	ActivityMessageSent  = "message_sent"
	ActivityFileUploaded = "file_uploaded"
	ActivityPageView     = "page_view"
)
