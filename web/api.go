// Package web wires the HTTP surface of the service: routing, the
// auth gate in front of protected routes, and the translation of
// every failure into a deterministic response.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/parlor/parlor/auth"
	authapi "github.com/parlor/parlor/auth/api"
	"github.com/parlor/parlor/board"
	"github.com/parlor/parlor/internal/logutil"
	"github.com/parlor/parlor/moderation"
	"github.com/parlor/parlor/weberr"
)

type (
	Server struct {
		store  *board.Store
		hasher *auth.Hasher
		tokens *auth.TokenCodec
		mod    *moderation.Client
	}

	credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
)

// NewHandler assembles the full route table. Create, update and
// delete operations sit behind the auth gate; registration, login and
// question listing stay public.
func NewHandler(store *board.Store, hasher *auth.Hasher, tokens *auth.TokenCodec, mod *moderation.Client) http.Handler {
	s := &Server{store: store, hasher: hasher, tokens: tokens, mod: mod}
	realm := authapi.NewRealm(tokens)

	router := httprouter.New()
	router.HandleMethodNotAllowed = false
	router.POST("/registration", s.register)
	router.POST("/login", s.login)
	router.GET("/questions", s.listQuestions)
	router.POST("/questions", realm.Protect(s.addQuestion))
	router.PUT("/questions/:id", realm.Protect(s.updateQuestion))
	router.DELETE("/questions/:id", realm.Protect(s.deleteQuestion))
	router.POST("/answers", realm.Protect(s.addAnswer))
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		weberr.Respond(r.Context(), w, weberr.ChainFrom(r.Context()))
	})
	return instrument(cors(router))
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.fail(ctx, w, weberr.BodyParse(err))
		return
	}
	hash, err := s.hasher.Hash(ctx, []byte(creds.Password))
	if err != nil {
		s.fail(ctx, w, weberr.HashLibrary(err))
		return
	}
	if err := s.store.AddAccount(ctx, board.Account{Email: creds.Email, Password: hash}); err != nil {
		s.fail(ctx, w, err)
		return
	}
	replyText(w, http.StatusOK, "Account added")
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.fail(ctx, w, weberr.BodyParse(err))
		return
	}
	acct, err := s.store.AccountByEmail(ctx, creds.Email)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	ok, err := s.hasher.Verify(ctx, acct.Password, []byte(creds.Password))
	if err != nil {
		s.fail(ctx, w, weberr.HashLibrary(err))
		return
	}
	if !ok {
		s.fail(ctx, w, weberr.WrongPassword())
		return
	}
	token, err := s.tokens.Issue(ctx, acct.ID)
	if err != nil {
		// Token sealing only fails when the process itself is
		// misconfigured; this sits outside the request taxonomy.
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Unable to issue token")
		replyText(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	replyJSON(ctx, w, token)
}

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	log := logutil.GetOrDefault(ctx)
	log.Info().Msg("querying questions")
	pag, err := extractPagination(r.URL.Query())
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	questions, err := s.store.Questions(ctx, pag.limit, pag.offset)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	replyJSON(ctx, w, questions)
}

func (s *Server) addQuestion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	if sess, ok := authapi.SessionFrom(ctx); ok {
		log := logutil.GetOrDefault(ctx)
		log.Info().Int64("account.id", sess.AccountID).Msg("adding question")
	}
	var nq board.NewQuestion
	if err := json.NewDecoder(r.Body).Decode(&nq); err != nil {
		s.fail(ctx, w, weberr.BodyParse(err))
		return
	}
	title, err := s.mod.Censor(ctx, nq.Title)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	content, err := s.mod.Censor(ctx, nq.Content)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	nq.Title, nq.Content = title, content
	if _, err := s.store.AddQuestion(ctx, nq); err != nil {
		s.fail(ctx, w, err)
		return
	}
	replyText(w, http.StatusOK, "Question added")
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ctx := r.Context()
	id, err := strconv.ParseInt(p.ByName("id"), 10, 64)
	if err != nil {
		s.fail(ctx, w, weberr.Parse(err))
		return
	}
	var q board.Question
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.fail(ctx, w, weberr.BodyParse(err))
		return
	}
	// Title and content are vetted concurrently, mirroring the two
	// independent moderation round-trips.
	title, content := make(chan censored, 1), make(chan censored, 1)
	go func() {
		text, err := s.mod.Censor(ctx, q.Title)
		title <- censored{text, err}
	}()
	go func() {
		text, err := s.mod.Censor(ctx, q.Content)
		content <- censored{text, err}
	}()
	tr, cr := <-title, <-content
	if tr.err != nil {
		s.fail(ctx, w, tr.err)
		return
	}
	if cr.err != nil {
		s.fail(ctx, w, cr.err)
		return
	}
	q.Title, q.Content = tr.text, cr.text
	updated, err := s.store.UpdateQuestion(ctx, q, id)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	replyJSON(ctx, w, updated)
}

func (s *Server) deleteQuestion(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ctx := r.Context()
	id, err := strconv.ParseInt(p.ByName("id"), 10, 64)
	if err != nil {
		s.fail(ctx, w, weberr.Parse(err))
		return
	}
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		s.fail(ctx, w, err)
		return
	}
	replyText(w, http.StatusOK, fmt.Sprintf("Question %v deleted", id))
}

func (s *Server) addAnswer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	var na board.NewAnswer
	if err := json.NewDecoder(r.Body).Decode(&na); err != nil {
		s.fail(ctx, w, weberr.BodyParse(err))
		return
	}
	content, err := s.mod.Censor(ctx, na.Content)
	if err != nil {
		s.fail(ctx, w, err)
		return
	}
	na.Content = content
	if _, err := s.store.AddAnswer(ctx, na); err != nil {
		s.fail(ctx, w, err)
		return
	}
	replyText(w, http.StatusOK, "Answer added")
}

type censored struct {
	text string
	err  error
}

func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	chain := weberr.ChainFrom(ctx)
	if chain == nil {
		_, chain = weberr.WithChain(ctx)
	}
	chain.Attach(err)
	weberr.Respond(ctx, w, chain)
}

func replyText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func replyJSON(ctx context.Context, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logutil.GetOrDefault(ctx)
		log.Error().Err(err).Msg("Unable to encode response")
	}
}
