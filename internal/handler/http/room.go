package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/service"
)

// RoomHandler 封装了与房间管理相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// Register 挂载房间相关路由
func (h *RoomHandler) Register(rg *gin.RouterGroup) {
	rooms := rg.Group("/rooms")
	rooms.POST("", h.CreateRoom)
	rooms.GET("", h.QueryRooms)
	rooms.GET("/search", h.SearchText)
	rooms.GET("/joined", h.QueryJoinedRooms)
	rooms.GET("/:id", h.GetRoom)
	rooms.POST("/:id/join", h.JoinRoom)
	rooms.POST("/:id/exit", h.ExitRoom)
	rooms.POST("/:id/close", h.CloseRoom)
}

// CreateRoomRequest 定义创建房间请求的结构体
type CreateRoomRequest struct {
	Tag           string          `json:"tag" binding:"required"`
	ContactType   string          `json:"contact_type"`
	Content       string          `json:"content"`
	StartLocation domain.Location `json:"start_location"`
	EndLocation   domain.Location `json:"end_location"`
	StartTime     time.Time       `json:"start_time"`
	MaxMemberNum  int             `json:"max_member_num" binding:"required,min=1"`
}

// CloseRoomResponse 关闭房间的响应，closed 表示本次调用是否发生了状态变化
type CloseRoomResponse struct {
	RoomID string `json:"room_id"`
	Closed bool   `json:"closed"`
}

// CreateRoom 处理创建新房间的请求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.CreateRoom: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, service.CreateRoomSpec{
		Tag:           req.Tag,
		ContactType:   req.ContactType,
		Content:       req.Content,
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		StartTime:     req.StartTime,
		MaxMemberNum:  req.MaxMemberNum,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, room)
}

// JoinRoom 处理用户加入房间的请求
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	room, err := h.roomService.JoinRoom(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// ExitRoom 处理用户退出房间的请求
func (h *RoomHandler) ExitRoom(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.roomService.ExitRoom(c.Request.Context(), userID, c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Exited room successfully"})
}

// CloseRoom 处理关闭房间的请求，重复关闭返回 closed=false
func (h *RoomHandler) CloseRoom(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	roomID := c.Param("id")
	closed, err := h.roomService.CloseRoom(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, CloseRoomResponse{RoomID: roomID, Closed: closed})
}

// GetRoom 按 id 查询房间 (包含已归档房间)
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.QueryRoomByOid(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, room)
}

// QueryRooms 处理 fields / filters / sorts 条件查询
func (h *RoomHandler) QueryRooms(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rooms, err := h.roomService.QueryRooms(c.Request.Context(),
		c.Query("fields"), c.Query("filters"), restorePlus(c.Query("sorts")), offset, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// SearchText 处理全文检索
func (h *RoomHandler) SearchText(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rooms, err := h.roomService.SearchText(c.Request.Context(), c.Query("keyword"), offset, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// QueryJoinedRooms 返回当前用户加入的房间
func (h *RoomHandler) QueryJoinedRooms(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	rooms, err := h.roomService.QueryAllJoinedRooms(c.Request.Context(), userID, offset, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// currentUser 从 Gin 上下文中获取认证用户 ID (由 Auth 中间件设置)
func currentUser(c *gin.Context) (string, bool) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("Handler: User ID not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	userID, ok := userIDAny.(string)
	if !ok || userID == "" {
		logrus.Error("Handler: User ID in context is not a string")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error processing user ID")
		return "", false
	}
	return userID, true
}

func pageParams(c *gin.Context) (offset, limit int, ok bool) {
	var err error
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid input: offset must be an integer")
			return 0, 0, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid input: limit must be an integer")
			return 0, 0, false
		}
	}
	return offset, limit, true
}

// restorePlus 还原查询串中未编码的 "+" (表单解码后变成了空格)
func restorePlus(sorts string) string {
	if sorts == "" {
		return sorts
	}
	parts := strings.Split(sorts, ",")
	for i, p := range parts {
		if strings.HasPrefix(p, " ") {
			parts[i] = "+" + strings.TrimLeft(p, " ")
		}
	}
	return strings.Join(parts, ",")
}
