package idp_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/slogx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for identity provider end-to-end
 * tests. The container runs with the log mailer, so codes are read back out
 * of its log stream.
 */

const (
	testImageName = "consign-idp-test:latest"

	adminEmail = "admin@example.com"
	clerkEmail = "clerk@example.com"
	seedUsers  = adminEmail + "|Administrator|admin;" + clerkEmail + "|Counter Clerk|clerk"
)

// TestMain builds the Docker image once before all tests and removes it
// afterwards.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building IdP Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up IdP Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/idp/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // image might not exist
}

// idpContainer is a running identity provider.
type idpContainer struct {
	testcontainers.Container
	BaseURL string
}

// setupIdPContainer starts the identity provider with relaxed rate limits.
// extraEnv overrides or adds environment variables.
func setupIdPContainer(t *testing.T, extraEnv map[string]string) *idpContainer {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"IDP_ISSUER":     "consign-idp",
		"IDP_SEED_USERS": seedUsers,
		"IDP_MAILER":     "log",
		"TOKEN_TTL":      "1h",
		"ENV":            "test",
		"LOG_LEVEL":      "info",
		"LOG_FORMAT":     "json",
		// Tests make many rapid requests which would otherwise hit the strict
		// production limits.
		"RATELIMIT_STRICT_REQUESTS":   "1000",
		"RATELIMIT_STRICT_WINDOW_SEC": "60",
		"RATELIMIT_STRICT_BURST":      "1000",
		"RATELIMIT_MODERATE_REQUESTS": "1000",
		"RATELIMIT_MODERATE_BURST":    "1000",
	}
	for k, v := range extraEnv {
		if v == "" {
			delete(env, k)
			continue
		}
		env[k] = v
	}

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return &idpContainer{
		Container: container,
		BaseURL:   fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
	}
}

// latestCode returns the most recent code the log mailer wrote for email.
func (c *idpContainer) latestCode(t *testing.T, email string) string {
	t.Helper()

	var code string
	require.Eventually(t, func() bool {
		code = c.scanCode(t, email)
		return code != ""
	}, 10*time.Second, 100*time.Millisecond, "no code logged for %s", email)

	return code
}

func (c *idpContainer) scanCode(t *testing.T, email string) string {
	t.Helper()

	logs, err := c.Logs(context.Background())
	require.NoError(t, err)
	defer logs.Close()

	var code string
	sc := bufio.NewScanner(logs)
	for sc.Scan() {
		line := sc.Text()
		// Strip anything before the JSON object, e.g. stream headers.
		i := strings.IndexByte(line, '{')
		if i < 0 {
			continue
		}

		var entry struct {
			Msg   string `json:"msg"`
			Email string `json:"email"`
			Code  string `json:"code"`
		}
		if json.Unmarshal([]byte(line[i:]), &entry) != nil {
			continue
		}
		if entry.Msg == "otp_dispatched" && entry.Email == email {
			code = entry.Code
		}
	}
	return code
}

// codeCount returns how many codes have been logged for email.
func (c *idpContainer) codeCount(t *testing.T, email string) int {
	t.Helper()

	logs, err := c.Logs(context.Background())
	require.NoError(t, err)
	defer logs.Close()

	n := 0
	sc := bufio.NewScanner(logs)
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, `"otp_dispatched"`) && strings.Contains(line, `"email":"`+email+`"`) {
			n++
		}
	}
	return n
}

// newAuthenticator returns a client-side Authenticator against c. Its
// countdown is driven by the returned manual clock.
func newAuthenticator(t *testing.T, c *idpContainer) (*authsdk.Authenticator, *authsdk.SDKClient, *clock.Manual) {
	t.Helper()

	client := authsdk.NewSDKClient(c.BaseURL)
	clk := clock.NewManual(time.Now())

	auth, err := authsdk.NewAuthenticator(authsdk.Config{
		Provider:  client,
		Scheduler: clk,
		Logger:    slogx.Discard(),
	})
	require.NoError(t, err)

	return auth, client, clk
}

// login runs the whole flow for email and returns the session.
func login(t *testing.T, c *idpContainer, auth *authsdk.Authenticator, email string) authsdk.Session {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, auth.StartLogin(ctx, email))
	sess, err := auth.SubmitCode(ctx, c.latestCode(t, email))
	require.NoError(t, err)
	return sess
}

func newClient(c *idpContainer) *authsdk.SDKClient {
	return authsdk.NewSDKClient(c.BaseURL)
}
