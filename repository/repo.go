package repository

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"video-chapters/entities"
)

type ChapterRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB(ctx context.Context) *gorm.DB
	Migrate(ctx context.Context) error

	CreateAttachment(ctx context.Context, attachment *entities.Attachment) error
	FindAttachmentById(ctx context.Context, id int64) (*entities.Attachment, error)
	LockAttachment(ctx context.Context, id int64) (*entities.Attachment, error)
	ListAttachmentsByTopic(ctx context.Context, topicId int64) ([]*entities.Attachment, error)

	ListEntriesByAttachment(ctx context.Context, attachmentId int64) ([]*entities.TableOfContentEntry, error)
	FindEntryById(ctx context.Context, id int64) (*entities.TableOfContentEntry, error)
	CreateEntry(ctx context.Context, entry *entities.TableOfContentEntry) error
	SaveEntry(ctx context.Context, entry *entities.TableOfContentEntry) error
	DeleteEntry(ctx context.Context, id int64) error
	UpdateEntryOrder(ctx context.Context, id int64, orderIndex int) error

	FindQuizById(ctx context.Context, id int64) (*entities.Quiz, error)
	FindLatestQuizScore(ctx context.Context, quizId int64, viewerId uuid.UUID) (*entities.QuizScore, error)
}

type txKey struct{}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB, logLevel logger.LogLevel) (ChapterRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logLevel),
		},
	)
	if err != nil {
		return nil, err
	}
	return NewRepoFromGorm(gormDB), nil
}

func NewRepoFromGorm(db *gorm.DB) ChapterRepository {
	return &repo{
		db: db,
	}
}

// GetDB returns the transaction bound to ctx, if any.
func (r *repo) GetDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return callback(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(context.WithValue(ctx, txKey{}, tx))
	}, opts...)
}

func (r *repo) Migrate(ctx context.Context) error {
	return r.GetDB(ctx).AutoMigrate(
		&entities.Attachment{},
		&entities.TableOfContentEntry{},
		&entities.Quiz{},
		&entities.QuizScore{},
	)
}

func (r *repo) CreateAttachment(ctx context.Context, attachment *entities.Attachment) error {
	return r.GetDB(ctx).Create(attachment).Error
}

func (r *repo) FindAttachmentById(ctx context.Context, id int64) (*entities.Attachment, error) {
	attachment := &entities.Attachment{}
	err := r.GetDB(ctx).First(attachment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return attachment, nil
}

// LockAttachment loads the attachment row FOR UPDATE so that chapter
// mutations of one attachment are serialized.
func (r *repo) LockAttachment(ctx context.Context, id int64) (*entities.Attachment, error) {
	attachment := &entities.Attachment{}
	err := r.GetDB(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(attachment, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return attachment, nil
}

func (r *repo) ListAttachmentsByTopic(ctx context.Context, topicId int64) ([]*entities.Attachment, error) {
	var attachments []*entities.Attachment
	err := r.GetDB(ctx).Where("topic_id = ?", topicId).Order("created_at ASC, id ASC").Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *repo) ListEntriesByAttachment(ctx context.Context, attachmentId int64) ([]*entities.TableOfContentEntry, error) {
	var entries []*entities.TableOfContentEntry
	err := r.GetDB(ctx).Where("attachment_id = ?", attachmentId).Order("order_index ASC, id ASC").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) FindEntryById(ctx context.Context, id int64) (*entities.TableOfContentEntry, error) {
	entry := &entities.TableOfContentEntry{}
	err := r.GetDB(ctx).First(entry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *repo) CreateEntry(ctx context.Context, entry *entities.TableOfContentEntry) error {
	return r.GetDB(ctx).Create(entry).Error
}

func (r *repo) SaveEntry(ctx context.Context, entry *entities.TableOfContentEntry) error {
	return r.GetDB(ctx).Save(entry).Error
}

func (r *repo) DeleteEntry(ctx context.Context, id int64) error {
	return r.GetDB(ctx).Delete(&entities.TableOfContentEntry{}, "id = ?", id).Error
}

func (r *repo) UpdateEntryOrder(ctx context.Context, id int64, orderIndex int) error {
	entry := &entities.TableOfContentEntry{}
	return r.GetDB(ctx).Model(entry).Where("id = ?", id).Update("order_index", orderIndex).Error
}

func (r *repo) FindQuizById(ctx context.Context, id int64) (*entities.Quiz, error) {
	quiz := &entities.Quiz{}
	err := r.GetDB(ctx).First(quiz, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return quiz, nil
}

func (r *repo) FindLatestQuizScore(ctx context.Context, quizId int64, viewerId uuid.UUID) (*entities.QuizScore, error) {
	score := &entities.QuizScore{}
	err := r.GetDB(ctx).
		Where("quiz_id = ? AND viewer_id = ?", quizId, viewerId).
		Order("created_at DESC, id DESC").
		First(score).Error
	if err != nil {
		return nil, err
	}

	return score, nil
}
