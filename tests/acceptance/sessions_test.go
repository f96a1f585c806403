package acceptance

import (
	"encoding/json"
	"net/http"

	"github.com/marketlens/account-service/internal/dto"
)

func (s *Suite) deleteJSON(path, token string) *http.Response {
	req, err := http.NewRequest(http.MethodDelete, s.App.BaseURL+path, nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) TestSessions_ListMarksCurrent() {
	authResp := s.register(testEmail, testPassword)

	resp := s.getJSON("/api/v1/sessions", authResp.Token)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var list dto.SessionListResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&list))
	s.Require().Equal(1, list.Count)
	s.Equal(authResp.Session.SessionID, list.Sessions[0].SessionID)
	s.True(list.Sessions[0].IsCurrent)
}

func (s *Suite) TestSessions_TerminateOther() {
	first := s.register(testEmail, testPassword)

	loginResp, second := s.login(testEmail, testPassword, false)
	loginResp.Body.Close()
	s.Require().Equal(http.StatusOK, loginResp.StatusCode)

	resp := s.deleteJSON("/api/v1/sessions/"+first.Session.SessionID, second.Token)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	// The terminated session's token no longer authenticates.
	meResp := s.getJSON("/api/v1/auth/me", first.Token)
	meResp.Body.Close()
	s.Equal(http.StatusUnauthorized, meResp.StatusCode)
}

func (s *Suite) TestSessions_CannotTerminateForeignSession() {
	victim := s.register(testEmail, testPassword)
	attacker := s.register("other@example.com", testPassword)

	resp := s.deleteJSON("/api/v1/sessions/"+victim.Session.SessionID, attacker.Token)
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)

	meResp := s.getJSON("/api/v1/auth/me", victim.Token)
	meResp.Body.Close()
	s.Equal(http.StatusOK, meResp.StatusCode)
}

func (s *Suite) TestSessions_TerminateOthers() {
	s.register(testEmail, testPassword)

	loginResp, current := s.login(testEmail, testPassword, false)
	loginResp.Body.Close()
	s.Require().Equal(http.StatusOK, loginResp.StatusCode)

	resp := s.deleteJSON("/api/v1/sessions/others", current.Token)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	listResp := s.getJSON("/api/v1/sessions", current.Token)
	defer listResp.Body.Close()

	var list dto.SessionListResponse
	s.Require().NoError(json.NewDecoder(listResp.Body).Decode(&list))
	s.Equal(1, list.Count)
	s.Equal(current.Session.SessionID, list.Sessions[0].SessionID)
}
