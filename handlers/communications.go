package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"imbackend/appctx"
	"imbackend/clients"
	"imbackend/models/api"
	"imbackend/services/communications"
)

type CommunicationsHTTPHandler struct {
	communicationsService *communications.CommunicationsService
}

func NewCommunicationsHTTPHandler(
	communicationsService *communications.CommunicationsService,
) *CommunicationsHTTPHandler {
	return &CommunicationsHTTPHandler{communicationsService: communicationsService}
}

type SendMessageRequest struct {
	Channel          string `json:"channel"`
	UserID           string `json:"userId"`
	Content          string `json:"content"`
	ThreadID         string `json:"threadId"`
	ReplyToMessageID string `json:"replyToMessageId"`
}

type CreateChannelRequest struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

type UpdateMessageRequest struct {
	Content string `json:"content"`
}

// HandleSendMessage posts to a channel, or to a user's DM when userId is
// set instead of channel.
func (h *CommunicationsHTTPHandler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("💬 Send message request for integration: %s", id)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := &clients.MessageOptions{
		ThreadID:         req.ThreadID,
		ReplyToMessageID: req.ReplyToMessageID,
	}

	if req.UserID != "" {
		message, err := h.communicationsService.SendDirectMessage(
			r.Context(), user.ClientID, id, req.UserID, req.Content, opts,
		)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, api.SuccessResponse(message))
		return
	}

	if req.Channel == "" {
		writeError(w, http.StatusBadRequest, "channel or userId is required")
		return
	}

	message, err := h.communicationsService.SendMessage(r.Context(), user.ClientID, id, req.Channel, req.Content, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse(message))
}

func (h *CommunicationsHTTPHandler) HandleGetChannels(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("💬 List channels request for integration: %s", id)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	channels, err := h.communicationsService.GetChannels(r.Context(), user.ClientID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse(channels))
}

func (h *CommunicationsHTTPHandler) HandleGetUsers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("💬 List users request for integration: %s", id)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	users, err := h.communicationsService.GetUsers(r.Context(), user.ClientID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse(users))
}

func (h *CommunicationsHTTPHandler) HandleCreateChannel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	log.Printf("💬 Create channel request for integration: %s", id)

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel, err := h.communicationsService.CreateChannel(r.Context(), user.ClientID, id, req.Name, req.Private)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.SuccessResponse(channel))
}

func (h *CommunicationsHTTPHandler) HandleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	log.Printf("💬 Update message request for integration: %s", vars["id"])

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.communicationsService.UpdateMessage(
		r.Context(), user.ClientID, vars["id"], vars["channelId"], vars["messageId"], req.Content,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse(map[string]string{"id": vars["messageId"], "updated": "true"}))
}

func (h *CommunicationsHTTPHandler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	log.Printf("💬 Delete message request for integration: %s", vars["id"])

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	err := h.communicationsService.DeleteMessage(
		r.Context(), user.ClientID, vars["id"], vars["channelId"], vars["messageId"],
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse(map[string]string{"id": vars["messageId"], "deleted": "true"}))
}

func (h *CommunicationsHTTPHandler) HandleGetChannelHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	log.Printf("💬 Channel history request for integration: %s", vars["id"])

	user, ok := appctx.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	opts := &clients.HistoryOptions{
		Oldest: r.URL.Query().Get("oldest"),
		Latest: r.URL.Query().Get("latest"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			opts.Limit = limit
		}
	}

	messages, err := h.communicationsService.GetChannelHistory(r.Context(), user.ClientID, vars["id"], vars["channelId"], opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.SuccessResponse(messages))
}
