// Package board persists the Q&A data: accounts, questions and
// answers. Plain parameterized queries against sqlite; every failure
// surfaces as a database-query error carrying a fixed, non-leaking
// message, with the driver error kept only for the server logs.
package board

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/parlor/parlor/weberr"
)

type (
	Store struct {
		db *sql.DB
	}

	Account struct {
		ID       int64  `json:"id"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	Question struct {
		ID      int64    `json:"id"`
		Title   string   `json:"title"`
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
	}

	NewQuestion struct {
		Title   string   `json:"title"`
		Content string   `json:"content"`
		Tags    []string `json:"tags"`
	}

	Answer struct {
		ID         int64  `json:"id"`
		Content    string `json:"content"`
		QuestionID int64  `json:"question_id"`
	}

	NewAnswer struct {
		Content    string `json:"content"`
		QuestionID int64  `json:"question_id"`
	}
)

// Open opens (creating if needed) the board database at path and
// ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	connstr := fmt.Sprintf("file:%v?_journal=wal&_fk=true&mode=rwc", path)
	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("board: unable to open %v, cause %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("board: unable to ping %v, cause %w", path, err)
	}
	s := &Store{db: db}
	if err := s.init(ctx); err != nil {
		return nil, fmt.Errorf("board: unable to init schema, cause %w", err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		`create table if not exists accounts(
			id integer primary key autoincrement,
			email text not null unique,
			password text not null)`,
		`create table if not exists questions(
			id integer primary key autoincrement,
			title text not null,
			content text not null,
			tags text not null default '[]')`,
		`create table if not exists answers(
			id integer primary key autoincrement,
			content text not null,
			question_id integer not null references questions(id))`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Questions returns up to limit questions starting at offset. A nil
// limit returns everything after offset.
func (s *Store) Questions(ctx context.Context, limit *int, offset int) ([]Question, error) {
	max := -1 // sqlite: negative LIMIT means unbounded
	if limit != nil {
		max = *limit
	}
	rows, err := s.db.QueryContext(ctx, `select id, title, content, tags from questions order by id limit ? offset ?`, max, offset)
	if err != nil {
		return nil, weberr.Database("failed to query questions", err)
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		var q Question
		var tags string
		if err := rows.Scan(&q.ID, &q.Title, &q.Content, &tags); err != nil {
			return nil, weberr.Database("failed to query questions", err)
		}
		if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
			return nil, weberr.Database("failed to query questions", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, weberr.Database("failed to query questions", err)
	}
	return out, nil
}

// AddQuestion persists q and returns it with its server-assigned id.
func (s *Store) AddQuestion(ctx context.Context, q NewQuestion) (Question, error) {
	tags, err := encodeTags(q.Tags)
	if err != nil {
		return Question{}, weberr.Database("failed to add question", err)
	}
	res, err := s.db.ExecContext(ctx, `insert into questions (title, content, tags) values (?, ?, ?)`, q.Title, q.Content, tags)
	if err != nil {
		return Question{}, weberr.Database("failed to add question", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Question{}, weberr.Database("failed to add question", err)
	}
	return Question{ID: id, Title: q.Title, Content: q.Content, Tags: q.Tags}, nil
}

// UpdateQuestion overwrites the question identified by id. The id
// carried inside q is ignored.
func (s *Store) UpdateQuestion(ctx context.Context, q Question, id int64) (Question, error) {
	tags, err := encodeTags(q.Tags)
	if err != nil {
		return Question{}, weberr.Database("failed to update question", err)
	}
	res, err := s.db.ExecContext(ctx, `update questions set title = ?, content = ?, tags = ? where id = ?`, q.Title, q.Content, tags, id)
	if err != nil {
		return Question{}, weberr.Database("failed to update question", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Question{}, weberr.Database("failed to update question", err)
	}
	if n == 0 {
		return Question{}, weberr.Database("failed to update question", sql.ErrNoRows)
	}
	return Question{ID: id, Title: q.Title, Content: q.Content, Tags: q.Tags}, nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `delete from questions where id = ?`, id); err != nil {
		return weberr.Database("failed to delete question", err)
	}
	return nil
}

// AddAnswer persists a and returns it with its server-assigned id.
func (s *Store) AddAnswer(ctx context.Context, a NewAnswer) (Answer, error) {
	res, err := s.db.ExecContext(ctx, `insert into answers (content, question_id) values (?, ?)`, a.Content, a.QuestionID)
	if err != nil {
		return Answer{}, weberr.Database("failed to add answer", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Answer{}, weberr.Database("failed to add answer", err)
	}
	return Answer{ID: id, Content: a.Content, QuestionID: a.QuestionID}, nil
}

// AddAccount persists acct. Not idempotent: a duplicate email is a
// database failure, surfaced like any other.
func (s *Store) AddAccount(ctx context.Context, acct Account) error {
	if _, err := s.db.ExecContext(ctx, `insert into accounts (email, password) values (?, ?)`, acct.Email, acct.Password); err != nil {
		return weberr.Database("failed to add account", err)
	}
	return nil
}

// AccountByEmail returns the account registered under email.
func (s *Store) AccountByEmail(ctx context.Context, email string) (Account, error) {
	var acct Account
	err := s.db.QueryRowContext(ctx, `select id, email, password from accounts where email = ?`, email).
		Scan(&acct.ID, &acct.Email, &acct.Password)
	if err != nil {
		return Account{}, weberr.Database("failed to query accounts", err)
	}
	return acct, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	buf, err := json.Marshal(tags)
	return string(buf), err
}
