package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"sociofi/internal/models"
)

// AuthResponse is returned by sign-in and sign-up.
type AuthResponse struct {
	AccessToken string      `json:"access_token" validate:"required"`
	User        models.User `json:"user" validate:"required"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	form := url.Values{"username": {email}, "password": {password}}
	var out AuthResponse
	err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/signin",
		body:        formBody(form),
		contentType: "application/x-www-form-urlencoded",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, email, password, firstName, lastName string) (*AuthResponse, error) {
	form := url.Values{
		"email":     {email},
		"password":  {password},
		"firstName": {firstName},
		"lastName":  {lastName},
	}
	var out AuthResponse
	err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/auth/signup",
		body:        formBody(form),
		contentType: "application/x-www-form-urlencoded",
	}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest && apiErr.Detail == emailNotAuthorizedDetail {
			return nil, fmt.Errorf("%w: %s", ErrEmailNotAuthorized, email)
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]models.User, error) {
	var out []models.User
	if err := c.call(ctx, request{method: http.MethodGet, path: "/users/all", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type ProfilePictureResponse struct {
	ProfilePictureURL string `json:"profile_picture_url" validate:"required"`
}

func (c *Client) UploadProfilePicture(ctx context.Context, token, filename string, content io.Reader) (string, error) {
	body, contentType, err := multipartBody("file", filename, content, nil)
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}
	var out ProfilePictureResponse
	if err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/users/profile-picture",
		token:       token,
		body:        body,
		contentType: contentType,
	}, &out); err != nil {
		return "", err
	}
	return out.ProfilePictureURL, nil
}

func (c *Client) ListChats(ctx context.Context, token string) ([]models.Chat, error) {
	var out []models.Chat
	if err := c.call(ctx, request{method: http.MethodGet, path: "/chatbot/chats", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateChat(ctx context.Context, token, title string) (*models.Chat, error) {
	body, err := jsonBody(map[string]string{"title": title})
	if err != nil {
		return nil, err
	}
	var out models.Chat
	if err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/chatbot/chats",
		token:       token,
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetChat(ctx context.Context, token string, chatID int64) (*models.Chat, error) {
	var out models.Chat
	if err := c.call(ctx, request{
		method: http.MethodGet,
		path:   "/chatbot/chats/" + strconv.FormatInt(chatID, 10),
		token:  token,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessage posts a plain chat message and returns the assistant reply.
func (c *Client) SendMessage(ctx context.Context, token string, chatID int64, content string) (*models.Reply, error) {
	body, err := jsonBody(map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	var out models.Reply
	if err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/chatbot/chats/" + strconv.FormatInt(chatID, 10) + "/messages",
		token:       token,
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTask creates a task from a chat and returns the entries to append to its transcript.
func (c *Client) CreateTask(ctx context.Context, token string, chatID int64, req models.CreateTaskRequest) ([]models.Message, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var out []models.Message
	if err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/tasks/create",
		query:       url.Values{"chat_id": {strconv.FormatInt(chatID, 10)}},
		token:       token,
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListTasks(ctx context.Context, token string) ([]models.Task, error) {
	var out []models.Task
	if err := c.call(ctx, request{method: http.MethodGet, path: "/tasks", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAllTasks(ctx context.Context, token string) ([]models.Task, error) {
	var out []models.Task
	if err := c.call(ctx, request{method: http.MethodGet, path: "/tasks/all", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateTaskStatus(ctx context.Context, token string, taskID int64, status string) error {
	req := models.UpdateTaskStatusRequest{Status: status}
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	body, err := jsonBody(req)
	if err != nil {
		return err
	}
	return c.call(ctx, request{
		method:      http.MethodPatch,
		path:        "/tasks/" + strconv.FormatInt(taskID, 10),
		token:       token,
		body:        body,
		contentType: "application/json",
	}, nil)
}

// CreateAnnouncement publishes an announcement from a chat and returns the entries to append.
func (c *Client) CreateAnnouncement(ctx context.Context, token string, chatID int64, req models.CreateAnnouncementRequest) ([]models.Message, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}
	var out []models.Message
	if err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/announcement/create",
		query:       url.Values{"chat_id": {strconv.FormatInt(chatID, 10)}},
		token:       token,
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAnnouncements(ctx context.Context, token string) ([]models.Announcement, error) {
	var out []models.Announcement
	if err := c.call(ctx, request{method: http.MethodGet, path: "/announcement/get-announcements", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListMeetings(ctx context.Context, token string) ([]models.Meeting, error) {
	var out []models.Meeting
	if err := c.call(ctx, request{method: http.MethodGet, path: "/meetings", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateMeeting(ctx context.Context, token string, meeting models.Meeting) (*models.Meeting, error) {
	if err := c.validate.Struct(meeting); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	body, err := jsonBody(meeting)
	if err != nil {
		return nil, err
	}
	var out models.Meeting
	if err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/meetings",
		token:       token,
		body:        body,
		contentType: "application/json",
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDocuments(ctx context.Context, token string) ([]models.Document, error) {
	var out []models.Document
	if err := c.call(ctx, request{method: http.MethodGet, path: "/documents", token: token}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UploadDocument(ctx context.Context, token, filename string, allowedRoles []string, content io.Reader) (*models.Document, error) {
	body, contentType, err := multipartBody("file", filename, content, map[string][]string{"allowed_roles": allowedRoles})
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}
	var out models.Document
	if err := c.call(ctx, request{
		method:      http.MethodPost,
		path:        "/documents",
		token:       token,
		body:        body,
		contentType: contentType,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadDocument streams a document body. The caller closes it.
func (c *Client) DownloadDocument(ctx context.Context, token, id string) (io.ReadCloser, string, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/documents/" + url.PathEscape(id) + "/download",
		token:  token,
	})
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) DeleteDocument(ctx context.Context, token, id string) error {
	return c.call(ctx, request{
		method: http.MethodDelete,
		path:   "/documents/" + url.PathEscape(id),
		token:  token,
	}, nil)
}
