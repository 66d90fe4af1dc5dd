package service

import (
	"errors"

	"github.com/swust-xl/CampusPartner-sub001/internal/repository"
)

var (
	ErrValidation       = errors.New("invalid request")
	ErrRoomNotFound     = errors.New("room not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrCapacityExceeded = errors.New("room is full")
	ErrInternalServer   = errors.New("internal server error")
)

// mapRepoError 将仓库层的错误映射到服务层定义的错误。
// notFound 指定 "未找到" 对应的业务错误。
func mapRepoError(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	if errors.Is(err, repository.ErrInvalidQuery) {
		return ErrValidation
	}
	return ErrInternalServer
}
