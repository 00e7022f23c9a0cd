package service_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"coach-sync-api/core/database"
	"coach-sync-api/modules/message/entity"
	"coach-sync-api/modules/message/repository"
	"coach-sync-api/modules/message/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestSendSystemMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := service.NewMessageService(repository.NewMessageRepository(database.NewFromSQLx(sqlx.NewDb(db, "sqlmock"))))
	coach, client := uuid.New(), uuid.New()
	msgID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM messages")).
		WithArgs(coach, client).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(coach, client, "Reminder: session tomorrow", entity.TypeSystem).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(msgID.String(), time.Now()))

	msg, err := svc.SendSystemMessage(context.Background(), coach, client, "Reminder: session tomorrow")
	require.NoError(t, err)
	require.Equal(t, msgID, msg.ID)
	require.Equal(t, entity.TypeSystem, msg.MessageType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendSystemMessage_EmptyContent(t *testing.T) {
	svc := service.NewMessageService(nil)
	_, err := svc.SendSystemMessage(context.Background(), uuid.New(), uuid.New(), "  ")
	require.Error(t, err)
}
