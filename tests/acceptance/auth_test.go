package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"net/http"
	"sync/atomic"

	"github.com/marketlens/account-service/internal/dto"
)

const (
	testEmail    = "user@example.com"
	testPassword = "Password123"
	testPhone    = "+79991234567"
)

// uniquePhone derives a distinct valid phone number per email so two
// registrations in one test never collide on the phone index.
func uniquePhone(email string) string {
	sum := crc32.ChecksumIEEE([]byte(email))
	return fmt.Sprintf("+7%09d", sum%1000000000)
}

func (s *Suite) postJSON(path string, body interface{}, token string) *http.Response {
	data, err := json.Marshal(body)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.App.BaseURL+path, bytes.NewBuffer(data))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) getJSON(path, token string) *http.Response {
	req, err := http.NewRequest(http.MethodGet, s.App.BaseURL+path, nil)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	return resp
}

// register drives the full two-step registration and returns the login token.
func (s *Suite) register(email, password string) dto.AuthResponse {
	resp := s.postJSON("/api/v1/auth/register/otp", dto.RegisterOTPRequest{
		Name:  "Test User",
		Email: email,
	}, "")
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	code := s.App.Mailer.LastOTP(email)
	s.Require().Len(code, 6)

	resp2 := s.postJSON("/api/v1/auth/register", dto.CompleteRegistrationRequest{
		Email:    email,
		OTP:      code,
		Phone:    uniquePhone(email),
		Password: password,
	}, "")
	defer resp2.Body.Close()
	s.Require().Equal(http.StatusCreated, resp2.StatusCode)

	var authResp dto.AuthResponse
	s.Require().NoError(json.NewDecoder(resp2.Body).Decode(&authResp))
	return authResp
}

var deviceSeq atomic.Int64

// login signs in from a fresh synthetic device. Each call carries a distinct
// User-Agent, otherwise every login would collapse onto the same-device path.
func (s *Suite) login(email, password string, force bool) (*http.Response, dto.AuthResponse) {
	data, err := json.Marshal(dto.LoginRequest{
		Email:      email,
		Password:   password,
		ForceLogin: force,
	})
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.App.BaseURL+"/api/v1/auth/login", bytes.NewBuffer(data))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0) Chrome/120.0.%d", deviceSeq.Add(1)))

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)

	var authResp dto.AuthResponse
	if resp.StatusCode == http.StatusOK {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(&authResp))
	}
	return resp, authResp
}

func (s *Suite) TestRegistration_FullFlow() {
	authResp := s.register(testEmail, testPassword)

	s.NotEmpty(authResp.Token)
	s.Equal("Bearer", authResp.TokenType)
	s.NotZero(authResp.ExpiresIn)
	s.Equal(testEmail, authResp.User.Email)
	s.NotEmpty(authResp.User.ID)
	s.NotEmpty(authResp.Session.SessionID)
	s.Contains(s.App.Mailer.Welcomes, testEmail)
}

func (s *Suite) TestRegistration_WrongOTP() {
	resp := s.postJSON("/api/v1/auth/register/otp", dto.RegisterOTPRequest{
		Name:  "Test User",
		Email: testEmail,
	}, "")
	resp.Body.Close()

	resp2 := s.postJSON("/api/v1/auth/register", dto.CompleteRegistrationRequest{
		Email:    testEmail,
		OTP:      "000000",
		Phone:    testPhone,
		Password: testPassword,
	}, "")
	defer resp2.Body.Close()

	s.Equal(http.StatusUnauthorized, resp2.StatusCode)
}

func (s *Suite) TestRegistration_UnknownEmailNotRevealed() {
	resp := s.postJSON("/api/v1/auth/register", dto.CompleteRegistrationRequest{
		Email:    "never-requested@example.com",
		OTP:      "123456",
		Phone:    testPhone,
		Password: testPassword,
	}, "")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogin_Success() {
	s.register(testEmail, testPassword)

	resp, authResp := s.login(testEmail, testPassword, false)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotEmpty(authResp.Token)
	s.Equal(testEmail, authResp.User.Email)
}

func (s *Suite) TestLogin_WrongPassword() {
	s.register(testEmail, testPassword)

	resp, _ := s.login(testEmail, "WrongPassword1", false)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestLogin_LockoutAfterRepeatedFailures() {
	s.register(testEmail, testPassword)

	for i := 0; i < 5; i++ {
		resp, _ := s.login(testEmail, "WrongPassword1", false)
		resp.Body.Close()
	}

	resp, _ := s.login(testEmail, testPassword, false)
	defer resp.Body.Close()

	s.Equal(http.StatusForbidden, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
	s.NotEmpty(errResp.Message)
}

func (s *Suite) TestLogin_SessionCapRejectsThirdDevice() {
	s.register(testEmail, testPassword)

	// Two extra logins hit the cap of two. The registration session counts.
	resp1, _ := s.login(testEmail, testPassword, false)
	resp1.Body.Close()
	s.Equal(http.StatusOK, resp1.StatusCode)

	resp2, _ := s.login(testEmail, testPassword, false)
	defer resp2.Body.Close()

	s.Equal(http.StatusConflict, resp2.StatusCode)

	var limitResp dto.SessionLimitResponse
	s.Require().NoError(json.NewDecoder(resp2.Body).Decode(&limitResp))
	s.Len(limitResp.Sessions, 2)
}

func (s *Suite) TestLogin_ForceEvictsOldestSession() {
	s.register(testEmail, testPassword)

	resp1, _ := s.login(testEmail, testPassword, false)
	resp1.Body.Close()

	resp2, authResp := s.login(testEmail, testPassword, true)
	defer resp2.Body.Close()

	s.Equal(http.StatusOK, resp2.StatusCode)
	s.NotEmpty(authResp.Token)

	listResp := s.getJSON("/api/v1/sessions", authResp.Token)
	defer listResp.Body.Close()

	var sessions dto.SessionListResponse
	s.Require().NoError(json.NewDecoder(listResp.Body).Decode(&sessions))
	s.Equal(2, sessions.Count)
}

func (s *Suite) TestLogout_InvalidatesToken() {
	authResp := s.register(testEmail, testPassword)

	resp := s.postJSON("/api/v1/auth/logout", struct{}{}, authResp.Token)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	meResp := s.getJSON("/api/v1/auth/me", authResp.Token)
	defer meResp.Body.Close()
	s.Equal(http.StatusUnauthorized, meResp.StatusCode)
}

func (s *Suite) TestGetMe() {
	authResp := s.register(testEmail, testPassword)

	resp := s.getJSON("/api/v1/auth/me", authResp.Token)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var user dto.UserResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&user))
	s.Equal(testEmail, user.Email)
	s.True(user.IsEmailVerified)
}

func (s *Suite) TestPasswordReset_FullFlow() {
	authResp := s.register(testEmail, testPassword)

	resp := s.postJSON("/api/v1/auth/password/reset/otp", dto.PasswordResetOTPRequest{
		Email: testEmail,
	}, "")
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	code := s.App.Mailer.LastOTP(testEmail)
	s.Require().Len(code, 6)

	const newPassword = "NewPassword456"
	resp2 := s.postJSON("/api/v1/auth/password/reset", dto.ResetPasswordRequest{
		Email:       testEmail,
		OTP:         code,
		NewPassword: newPassword,
	}, "")
	resp2.Body.Close()
	s.Equal(http.StatusOK, resp2.StatusCode)

	// Old password no longer works, the previous session token is dead.
	oldResp, _ := s.login(testEmail, testPassword, false)
	oldResp.Body.Close()
	s.Equal(http.StatusUnauthorized, oldResp.StatusCode)

	meResp := s.getJSON("/api/v1/auth/me", authResp.Token)
	meResp.Body.Close()
	s.Equal(http.StatusUnauthorized, meResp.StatusCode)

	newResp, _ := s.login(testEmail, newPassword, false)
	defer newResp.Body.Close()
	s.Equal(http.StatusOK, newResp.StatusCode)
}

func (s *Suite) TestPasswordReset_UnknownEmailFailsUniformly() {
	resp := s.postJSON("/api/v1/auth/password/reset/otp", dto.PasswordResetOTPRequest{
		Email: "nobody@example.com",
	}, "")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	var errResp dto.ErrorResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
	s.Equal("authentication failed", errResp.Message)
	s.Empty(s.App.Mailer.LastOTP("nobody@example.com"))
}

func (s *Suite) TestChangePassword_KeepsCurrentSession() {
	authResp := s.register(testEmail, testPassword)

	otherResp, otherAuth := s.login(testEmail, testPassword, false)
	otherResp.Body.Close()
	s.Require().Equal(http.StatusOK, otherResp.StatusCode)

	const newPassword = "NewPassword456"
	resp := s.postJSON("/api/v1/auth/password/change", dto.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     newPassword,
	}, authResp.Token)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var changed dto.PasswordChangeResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&changed))
	s.NotEmpty(changed.Token)

	// The session that changed the password survives under the replacement
	// token, the other one dies.
	meResp := s.getJSON("/api/v1/auth/me", changed.Token)
	meResp.Body.Close()
	s.Equal(http.StatusOK, meResp.StatusCode)

	oldMe := s.getJSON("/api/v1/auth/me", authResp.Token)
	oldMe.Body.Close()
	s.Equal(http.StatusUnauthorized, oldMe.StatusCode)

	otherMe := s.getJSON("/api/v1/auth/me", otherAuth.Token)
	otherMe.Body.Close()
	s.Equal(http.StatusUnauthorized, otherMe.StatusCode)
}
