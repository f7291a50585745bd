// Package vector indexes activity notes in Weaviate for semantic retrieval.
// Vectors are produced externally (vectorizer "none") through the embeddings
// service, so search quality follows the configured embeddings model.
package vector

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/hindsight-ai/hindsight/pkg/agent/types"
)

const (
	ClassName = "ActivityNote"

	noteIDProperty     = "note_id"
	noteTypeProperty   = "note_type"
	summaryProperty    = "summary"
	categoriesProperty = "categories"
	startTSProperty    = "start_ts"
	endTSProperty      = "end_ts"
)

// Embedder is the slice of the ai service the index needs.
type Embedder interface {
	Embedding(ctx context.Context, input string, model string) ([]float64, error)
	Embeddings(ctx context.Context, inputs []string, model string) ([][]float64, error)
}

// Index wraps one Weaviate class holding activity notes.
type Index struct {
	client          *weaviate.Client
	embedder        Embedder
	embeddingsModel string
	logger          *log.Logger
}

func NewIndex(logger *log.Logger, client *weaviate.Client, embedder Embedder, embeddingsModel string) *Index {
	return &Index{
		client:          client,
		embedder:        embedder,
		embeddingsModel: embeddingsModel,
		logger:          logger,
	}
}

// EnsureSchema creates the ActivityNote class when it does not exist yet.
func (i *Index) EnsureSchema(ctx context.Context) error {
	schema, err := i.client.Schema().Getter().Do(ctx)
	if err != nil {
		return errors.Wrap(err, "getting Weaviate schema")
	}
	for _, class := range schema.Classes {
		if class.Class == ClassName {
			i.logger.Debug("Vector schema already exists", "class", ClassName)
			return nil
		}
	}

	i.logger.Info("Creating vector schema", "class", ClassName)
	classObj := &models.Class{
		Class:      ClassName,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: noteIDProperty, DataType: []string{"text"}},
			{Name: noteTypeProperty, DataType: []string{"text"}},
			{Name: summaryProperty, DataType: []string{"text"}},
			{Name: categoriesProperty, DataType: []string{"text[]"}},
			{Name: startTSProperty, DataType: []string{"int"}},
			{Name: endTSProperty, DataType: []string{"int"}},
		},
	}
	if err := i.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return errors.Wrap(err, "creating Weaviate class")
	}
	return nil
}

// Add embeds the note summaries and batch-stores the objects.
func (i *Index) Add(ctx context.Context, notes []types.Note) error {
	if len(notes) == 0 {
		return nil
	}

	summaries := make([]string, 0, len(notes))
	for _, n := range notes {
		summaries = append(summaries, n.Summary)
	}
	vectors, err := i.embedder.Embeddings(ctx, summaries, i.embeddingsModel)
	if err != nil {
		return errors.Wrap(err, "embedding note summaries")
	}
	if len(vectors) != len(notes) {
		return errors.Errorf("embeddings API returned %d vectors for %d notes", len(vectors), len(notes))
	}

	batcher := i.client.Batch().ObjectsBatcher()
	for idx, n := range notes {
		categories := n.Categories
		if categories == nil {
			categories = []string{}
		}
		obj := &models.Object{
			Class: ClassName,
			Properties: map[string]any{
				noteIDProperty:     n.NoteID,
				noteTypeProperty:   n.NoteType,
				summaryProperty:    n.Summary,
				categoriesProperty: categories,
				startTSProperty:    n.StartTS,
				endTSProperty:      n.EndTS,
			},
			Vector: toFloat32(vectors[idx]),
		}
		batcher = batcher.WithObjects(obj)
	}

	result, err := batcher.Do(ctx)
	if err != nil {
		return errors.Wrap(err, "batch storing notes")
	}
	for _, obj := range result {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return errors.Errorf("object error: %s", obj.Result.Errors.Error[0].Message)
		}
	}
	i.logger.Debug("Indexed notes", "count", len(notes))
	return nil
}

// Search embeds the query and runs a nearVector lookup, optionally bounded by
// a time filter and a note granularity.
func (i *Index) Search(ctx context.Context, query string, limit int, tf *types.TimeFilter, noteType string) ([]types.Note, error) {
	if limit <= 0 {
		limit = 10
	}

	vector, err := i.embedder.Embedding(ctx, query, i.embeddingsModel)
	if err != nil {
		return nil, errors.Wrap(err, "embedding query")
	}

	nearVector := i.client.GraphQL().NearVectorArgBuilder().WithVector(toFloat32(vector))
	fields := []graphql.Field{
		{Name: noteIDProperty},
		{Name: noteTypeProperty},
		{Name: summaryProperty},
		{Name: categoriesProperty},
		{Name: startTSProperty},
		{Name: endTSProperty},
	}

	builder := i.client.GraphQL().Get().
		WithClassName(ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...)

	if where := buildWhere(tf, noteType); where != nil {
		builder = builder.WithWhere(where)
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "executing Weaviate query")
	}
	if len(resp.Errors) > 0 {
		return nil, errors.Errorf("GraphQL error: %s", resp.Errors[0].Message)
	}

	return parseNotes(resp, i.logger), nil
}

func buildWhere(tf *types.TimeFilter, noteType string) *filters.WhereBuilder {
	var clauses []*filters.WhereBuilder
	if noteType != "" {
		clauses = append(clauses, filters.Where().
			WithPath([]string{noteTypeProperty}).
			WithOperator(filters.Equal).
			WithValueText(noteType))
	}
	if tf != nil && tf.Start != nil {
		clauses = append(clauses, filters.Where().
			WithPath([]string{startTSProperty}).
			WithOperator(filters.GreaterThanEqual).
			WithValueInt(tf.Start.Unix()))
	}
	if tf != nil && tf.End != nil {
		clauses = append(clauses, filters.Where().
			WithPath([]string{startTSProperty}).
			WithOperator(filters.LessThan).
			WithValueInt(tf.End.Unix()))
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(clauses)
	}
}

func parseNotes(resp *models.GraphQLResponse, logger *log.Logger) []types.Note {
	data, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		logger.Warn("No Get field in GraphQL response")
		return nil
	}
	items, ok := data[ClassName].([]any)
	if !ok {
		return nil
	}

	notes := make([]types.Note, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		note := types.Note{
			NoteID:   stringProp(obj, noteIDProperty),
			NoteType: stringProp(obj, noteTypeProperty),
			Summary:  stringProp(obj, summaryProperty),
			StartTS:  intProp(obj, startTSProperty),
			EndTS:    intProp(obj, endTSProperty),
		}
		if raw, ok := obj[categoriesProperty].([]any); ok {
			for _, c := range raw {
				if s, ok := c.(string); ok {
					note.Categories = append(note.Categories, s)
				}
			}
		}
		if note.NoteID == "" {
			continue
		}
		notes = append(notes, note)
	}
	return notes
}

func stringProp(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// intProp reads a numeric property; GraphQL decodes ints as float64.
func intProp(obj map[string]any, key string) int64 {
	switch v := obj[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
