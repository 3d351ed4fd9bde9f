package boardapi

import (
	"time"

	"agora/cmd/internal/board"
)

type createMessageRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id"`
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

type reactionRequest struct {
	Value int `json:"value"`
}

type reportRequest struct {
	Reason string `json:"reason"`
}

type createTagRequest struct {
	Name string `json:"name"`
}

type applyTagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

type authorResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type messageResponse struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	ParentID  *string        `json:"parent_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Edited    bool           `json:"edited"`
	Author    authorResponse `json:"author"`
	Likes     int            `json:"likes"`
	Dislikes  int            `json:"dislikes"`
	TagIDs    []string       `json:"tag_ids"`
}

type messageListResponse struct {
	Messages []messageResponse `json:"messages"`
}

type reactionResponse struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type tagListResponse struct {
	Tags []tagResponse `json:"tags"`
}

type reportResponse struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

func toMessageResponse(m board.ShapedMessage) messageResponse {
	tagIDs := m.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}
	return messageResponse{
		ID:        m.ID,
		Content:   m.Content,
		ParentID:  m.ParentID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Edited:    m.Edited,
		Author: authorResponse{
			ID:          m.Author.ID,
			Username:    m.Author.Username,
			DisplayName: m.Author.DisplayName,
			Role:        string(m.Author.Role),
		},
		Likes:    m.Counts.Likes,
		Dislikes: m.Counts.Dislikes,
		TagIDs:   tagIDs,
	}
}

func toMessageListResponse(ms []board.ShapedMessage) messageListResponse {
	out := make([]messageResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toMessageResponse(m))
	}
	return messageListResponse{Messages: out}
}

func toTagResponse(t board.Tag) tagResponse {
	return tagResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}
