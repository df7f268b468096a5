//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bissquit/jobwatch/internal/testutil"
)

type engineersEnvelope struct {
	Data struct {
		L1 []string `json:"L1"`
		L2 []string `json:"L2"`
	} `json:"data"`
}

func TestRoster_SeededEngineers(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.GET("/api/v1/engineers")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body engineersEnvelope
	testutil.DecodeJSON(t, resp, &body)
	assert.Subset(t, body.Data.L1, []string{"Alice", "Bob", "Charlie"})
	assert.Subset(t, body.Data.L2, []string{"David", "Eve"})
}

func TestRoster_AddRemoveEngineer(t *testing.T) {
	client := newTestClient(t)
	name := fmt.Sprintf("Frank-%d", time.Now().UnixNano())

	resp, err := client.POST("/api/v1/engineers", map[string]string{
		"name":  name,
		"level": "L2",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET("/api/v1/engineers")
	require.NoError(t, err)
	var body engineersEnvelope
	testutil.DecodeJSON(t, resp, &body)
	assert.Contains(t, body.Data.L2, name)

	// Duplicate conflicts
	raw := newTestClientWithoutValidation()
	resp, err = raw.POST("/api/v1/engineers", map[string]string{
		"name":  name,
		"level": "L2",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	// Remove
	resp, err = client.DELETE("/api/v1/engineers/" + name)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = raw.DELETE("/api/v1/engineers/" + name)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRoster_InvalidLevelRejected(t *testing.T) {
	raw := newTestClientWithoutValidation()

	resp, err := raw.POST("/api/v1/engineers", map[string]string{
		"name":  "Mallory",
		"level": "L5",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRoster_IncidentLinks(t *testing.T) {
	client := newTestClient(t)
	jobName := fmt.Sprintf("linked-%d", time.Now().UnixNano())

	id := respond(t, client, jobName, "Alice")
	linkPath := fmt.Sprintf("/api/v1/incidents/%d/link", id)

	// No link yet
	raw := newTestClientWithoutValidation()
	resp, err := raw.GET(linkPath)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	// Attach, text defaults to the URL
	resp, err = client.PUT(linkPath, map[string]string{
		"url": "https://runbooks.example.com/etl",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var link struct {
		Data struct {
			IncidentID int64  `json:"incident_id"`
			URL        string `json:"url"`
			Text       string `json:"text"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &link)
	assert.Equal(t, id, link.Data.IncidentID)
	assert.Equal(t, "https://runbooks.example.com/etl", link.Data.Text)

	// Replace
	resp, err = client.PUT(linkPath, map[string]string{
		"url":  "https://dashboards.example.com/etl",
		"text": "ETL dashboard",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.GET(linkPath)
	require.NoError(t, err)
	link.Data.Text = ""
	testutil.DecodeJSON(t, resp, &link)
	assert.Equal(t, "ETL dashboard", link.Data.Text)

	// Remove
	resp, err = client.DELETE(linkPath)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = raw.GET(linkPath)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRoster_InvalidLinkURL(t *testing.T) {
	client := newTestClient(t)
	jobName := fmt.Sprintf("badlink-%d", time.Now().UnixNano())

	id := respond(t, client, jobName, "Alice")

	raw := newTestClientWithoutValidation()
	resp, err := raw.PUT(fmt.Sprintf("/api/v1/incidents/%d/link", id), map[string]string{
		"url": "not a url",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}
