// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	// CollectionKnowledgeChunks 知识库分块集合
	CollectionKnowledgeChunks = "knowledge_chunks"

	// VectorDimension 向量维度，必须与 Embedding 服务输出一致
	VectorDimension = 768
)

// KnowledgeChunksSchema 知识库分块 Collection Schema
func KnowledgeChunksSchema() *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionKnowledgeChunks,
		Description:    "Knowledge base chunks for groundedness retrieval",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": "768",
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "content",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
		},
	}
}
