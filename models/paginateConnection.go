package models

import (
	"github.com/photoproos/studio_backend/utils"
	"gorm.io/gorm"
)

type Identifier interface {
	GetId() int
}

type Edge[N Identifier] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

type Connection[N Identifier] struct {
	Edges    []Edge[N] `json:"edges"`
	PageInfo *PageInfo `json:"pageInfo"`
}

// FetchPageById pages newest first by id; after is the EndCursor of the previous page.
func FetchPageById[T Identifier](dbCtx *gorm.DB, limit int, after *string) (*Connection[T], error) {
	limit = normalizeLimit(limit)
	nodes := make([]*T, 0)

	afterId, err := DecodeIdCursor(after)
	if err != nil {
		return nil, err
	}
	if afterId > 0 {
		dbCtx = dbCtx.Where("id < ?", afterId)
	}

	// one extra row tells us whether another page exists
	if err := dbCtx.Order("id DESC").Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	/*
		constructing edges & page info
	*/
	count := 0
	hasNextPage := false
	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		if count == limit {
			hasNextPage = true
			break
		}
		edges = append(edges, Edge[T]{
			Node:   node,
			Cursor: EncodeIdCursor((*node).GetId()),
		})
		count++
	}

	pageInfo := PageInfo{
		StartCursor: "",
		EndCursor:   "",
		HasNextPage: utils.NewFalse(),
	}
	if count > 0 {
		pageInfo = PageInfo{
			StartCursor: edges[0].Cursor,
			EndCursor:   edges[count-1].Cursor,
			HasNextPage: &hasNextPage,
		}
	}

	return &Connection[T]{Edges: edges, PageInfo: &pageInfo}, nil
}
