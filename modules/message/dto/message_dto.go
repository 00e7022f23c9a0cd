package dto

import "coach-sync-api/modules/message/entity"

type ThreadQuery struct {
	With     string `query:"with" validate:"required,uuid"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

type ThreadResponse struct {
	Items    []entity.Message `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}
