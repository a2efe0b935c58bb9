package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"quiz-battle-service/internal/domain"
)

const questionsCollection = "questions"

type questionDocument struct {
	ID            string   `bson:"_id"`
	SubjectID     string   `bson:"subject_id"`
	Text          string   `bson:"text"`
	Options       []string `bson:"options"`
	CorrectOption int      `bson:"correct_option"`
	Difficulty    string   `bson:"difficulty,omitempty"`
}

// QuestionLoader reads question pools from a MongoDB collection.
type QuestionLoader struct {
	collection *mongo.Collection
}

func NewQuestionLoader(db *mongo.Database) *QuestionLoader {
	return &QuestionLoader{collection: db.Collection(questionsCollection)}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, subjectID string) ([]domain.Question, error) {
	cursor, err := l.collection.Find(ctx, bson.M{"subject_id": subjectID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []questionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrSubjectUnavailable
	}
	out := make([]domain.Question, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Question{
			ID:            d.ID,
			SubjectID:     d.SubjectID,
			Text:          d.Text,
			Options:       d.Options,
			CorrectOption: d.CorrectOption,
			Difficulty:    d.Difficulty,
		})
	}
	return out, nil
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
