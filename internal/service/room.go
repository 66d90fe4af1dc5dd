package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/swust-xl/CampusPartner-sub001/internal/domain"
	"github.com/swust-xl/CampusPartner-sub001/internal/query"
	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

// CreateRoomSpec 创建房间所需的参数
type CreateRoomSpec struct {
	Tag           string
	ContactType   string
	Content       string
	StartLocation domain.Location
	EndLocation   domain.Location
	StartTime     time.Time
	MaxMemberNum  int
}

// RoomService 负责房间生命周期相关的业务逻辑。
// 实时状态存放在缓存中，归档后的房间只能从持久化存储查询。
type RoomService struct {
	cache repository.RoomCache
	store repository.RoomStore
	now   func() time.Time
	newID func() string
	log   *logrus.Entry
}

// NewRoomService 创建 RoomService 实例。
func NewRoomService(cache repository.RoomCache, store repository.RoomStore, logger *logrus.Logger) *RoomService {
	if cache == nil {
		panic("RoomCache cannot be nil for RoomService")
	}
	if store == nil {
		panic("RoomStore cannot be nil for RoomService")
	}
	return &RoomService{
		cache: cache,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
		log:   logger.WithField("component", "room_service"),
	}
}

// CreateRoom 创建一个新房间，初始为 OPEN 且没有成员。
func (s *RoomService) CreateRoom(ctx context.Context, ownerID string, spec CreateRoomSpec) (*domain.Room, error) {
	logCtx := s.log.WithFields(logrus.Fields{"owner_id": ownerID, "tag": spec.Tag})

	if err := validateCreate(ownerID, spec); err != nil {
		logCtx.WithError(err).Warn("CreateRoom: validation failed")
		return nil, err
	}

	now := s.now()
	room := &domain.Room{
		ID:            s.newID(),
		OwnerID:       ownerID,
		Tag:           spec.Tag,
		ContactType:   spec.ContactType,
		Content:       spec.Content,
		StartLocation: spec.StartLocation,
		EndLocation:   spec.EndLocation,
		StartTime:     spec.StartTime,
		MaxMemberNum:  spec.MaxMemberNum,
		Members:       []string{},
		Status:        domain.RoomOpen,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	logCtx = logCtx.WithField("room_id", room.ID)

	if err := s.cache.Upsert(ctx, room); err != nil {
		logCtx.WithError(err).Error("CreateRoom: failed to write room to cache")
		return nil, ErrInternalServer
	}

	logCtx.Info("Room created successfully")
	return room, nil
}

// JoinRoom 把用户加入房间。
// 房间不存在或已关闭返回 ErrRoomNotFound，已满返回 ErrCapacityExceeded，失败时不修改状态。
func (s *RoomService) JoinRoom(ctx context.Context, userID, roomID string) (*domain.Room, error) {
	logCtx := s.log.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})
	if userID == "" || roomID == "" {
		return nil, fmt.Errorf("%w: user id and room id are required", ErrValidation)
	}

	room, err := s.cache.Mutate(ctx, roomID, func(room *domain.Room) (bool, error) {
		if !room.IsOpen() {
			return false, ErrRoomNotFound
		}
		if room.HasMember(userID) {
			return false, nil
		}
		if room.IsFull() {
			return false, ErrCapacityExceeded
		}
		return room.AddMember(userID), nil
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrCapacityExceeded) {
			logCtx.WithError(err).Info("JoinRoom: rejected")
			return nil, err
		}
		return nil, s.logRepoError(logCtx, "JoinRoom", err)
	}

	logCtx.WithField("members", len(room.Members)).Info("User joined room successfully")
	return room, nil
}

// ExitRoom 把用户移出房间，不在房间内时为空操作。
// 房间关闭后成员名单冻结，退出同样是空操作，保证归档内容与关闭时一致。
func (s *RoomService) ExitRoom(ctx context.Context, userID, roomID string) error {
	logCtx := s.log.WithFields(logrus.Fields{"user_id": userID, "room_id": roomID})
	if userID == "" || roomID == "" {
		return fmt.Errorf("%w: user id and room id are required", ErrValidation)
	}

	_, err := s.cache.Mutate(ctx, roomID, func(room *domain.Room) (bool, error) {
		if !room.IsOpen() {
			return false, nil
		}
		return room.RemoveMember(userID), nil
	})
	if err != nil {
		return s.logRepoError(logCtx, "ExitRoom", err)
	}
	logCtx.Info("User exited room")
	return nil
}

// CloseRoom 关闭房间，返回本次调用是否发生了状态变化。
func (s *RoomService) CloseRoom(ctx context.Context, roomID string) (bool, error) {
	logCtx := s.log.WithField("room_id", roomID)
	if roomID == "" {
		return false, fmt.Errorf("%w: room id is required", ErrValidation)
	}

	closed := false
	_, err := s.cache.Mutate(ctx, roomID, func(room *domain.Room) (bool, error) {
		closed = room.Close()
		return closed, nil
	})
	if err != nil {
		return false, s.logRepoError(logCtx, "CloseRoom", err)
	}
	logCtx.WithField("transitioned", closed).Info("CloseRoom handled")
	return closed, nil
}

// QueryRoomByOid 先查缓存，未命中再查持久化存储 (已归档房间)。
func (s *RoomService) QueryRoomByOid(ctx context.Context, roomID string) (*domain.Room, error) {
	logCtx := s.log.WithField("room_id", roomID)
	if roomID == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrValidation)
	}

	room, err := s.cache.Get(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.logRepoError(logCtx, "QueryRoomByOid", err)
	}

	room, err = s.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, s.logRepoError(logCtx, "QueryRoomByOid", err)
	}
	return room, nil
}

// QueryRooms 按 fields / filters / sorts 语法查询持久化存储。
func (s *RoomService) QueryRooms(ctx context.Context, fields, filters, sorts string, offset, limit int) ([]domain.Room, error) {
	logCtx := s.log.WithFields(logrus.Fields{"fields": fields, "filters": filters, "sorts": sorts})

	q, err := query.Parse(fields, filters, sorts, offset, limit)
	if err != nil {
		logCtx.WithError(err).Warn("QueryRooms: invalid query")
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	rooms, err := s.store.Query(ctx, q)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidQuery) {
			logCtx.WithError(err).Warn("QueryRooms: unknown field")
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, s.logRepoError(logCtx, "QueryRooms", err)
	}
	return rooms, nil
}

// SearchText 在持久化存储中全文检索。
func (s *RoomService) SearchText(ctx context.Context, keyword string, offset, limit int) ([]domain.Room, error) {
	logCtx := s.log.WithField("keyword", keyword)
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", ErrValidation)
	}
	page, err := query.NewPage(offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	rooms, err := s.store.Search(ctx, keyword, page)
	if err != nil {
		return nil, s.logRepoError(logCtx, "SearchText", err)
	}
	return rooms, nil
}

// QueryAllJoinedRooms 返回用户当前在缓存中加入的房间，按创建时间倒序分页。
func (s *RoomService) QueryAllJoinedRooms(ctx context.Context, userID string, offset, limit int) ([]domain.Room, error) {
	logCtx := s.log.WithField("user_id", userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	page, err := query.NewPage(offset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	all, err := s.cache.MultiGet(ctx)
	if err != nil {
		return nil, s.logRepoError(logCtx, "QueryAllJoinedRooms", err)
	}
	joined := make([]domain.Room, 0)
	for i := range all {
		if all[i].HasMember(userID) {
			joined = append(joined, all[i])
		}
	}
	sort.SliceStable(joined, func(i, j int) bool {
		return joined[i].CreatedAt.After(joined[j].CreatedAt)
	})

	if page.Offset >= len(joined) {
		return []domain.Room{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(joined) {
		end = len(joined)
	}
	return joined[page.Offset:end], nil
}

// logRepoError 记录仓库错误并映射为业务错误
func (s *RoomService) logRepoError(logCtx *logrus.Entry, op string, err error) error {
	mapped := mapRepoError(err, ErrRoomNotFound)
	if mapped == ErrInternalServer {
		logCtx.WithError(err).Errorf("%s: repository error", op)
	} else {
		logCtx.WithError(err).Warnf("%s: %v", op, mapped)
	}
	return mapped
}

func validateCreate(ownerID string, spec CreateRoomSpec) error {
	if ownerID == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if strings.TrimSpace(spec.Tag) == "" {
		return fmt.Errorf("%w: tag is required", ErrValidation)
	}
	if spec.MaxMemberNum <= 0 {
		return fmt.Errorf("%w: maxMemberNum must be positive", ErrValidation)
	}
	if spec.Tag == domain.TagTransport && spec.StartLocation.Name == "" {
		return fmt.Errorf("%w: transport rooms require a start location", ErrValidation)
	}
	if spec.EndLocation.Name == "" {
		return fmt.Errorf("%w: end location is required", ErrValidation)
	}
	return nil
}
