package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joshdcar/spring-clean-resource-cleanup/internal/app"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/domain"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/obs"
	"github.com/joshdcar/spring-clean-resource-cleanup/internal/testutil"
)

type ExtendHandlerTestSuite struct {
	suite.Suite
	instances *testutil.MemoryInstanceRepository
	bus       *testutil.MemorySignalBus
	router    *gin.Engine
	ctx       context.Context
}

func (suite *ExtendHandlerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	gin.SetMode(gin.TestMode)

	suite.instances = testutil.NewMemoryInstanceRepository()
	suite.bus = testutil.NewMemorySignalBus()
	metrics := obs.NewMetricsWithRegistry(prometheus.NewRegistry())
	signals := app.NewSignalService(suite.instances, suite.bus, metrics)
	handler := NewExtendHandler(signals)

	suite.router = gin.New()
	suite.router.GET("/extend/:instanceID", handler.Extend)
	suite.router.GET("/api/v1/instances/:id", handler.GetInstance)
}

func (suite *ExtendHandlerTestSuite) createTestInstance() *domain.Instance {
	instance := domain.NewInstance(domain.ExtendRequest{
		ResourceGroup: "rg-spring-clean-test",
		Email:         "owner@example.com",
		ExtendBy:      24 * time.Hour,
		RespondWithin: 24 * time.Hour,
	})
	require.NoError(suite.T(), suite.instances.CreateInstance(suite.ctx, instance))
	return instance
}

func (suite *ExtendHandlerTestSuite) get(path string) *httptest.ResponseRecorder {
	req, err := http.NewRequest("GET", path, nil)
	require.NoError(suite.T(), err)
	recorder := httptest.NewRecorder()
	suite.router.ServeHTTP(recorder, req)
	return recorder
}

func (suite *ExtendHandlerTestSuite) TestExtendRecordsSignal() {
	instance := suite.createTestInstance()

	recorder := suite.get("/extend/" + instance.ID)

	assert.Equal(suite.T(), http.StatusOK, recorder.Code)
	assert.Contains(suite.T(), recorder.Header().Get("Content-Type"), "text/html")
	assert.Contains(suite.T(), recorder.Body.String(), "extension request has been received")

	stored, err := suite.instances.GetInstance(suite.ctx, instance.ID)
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), stored.SignaledAt)
}

func (suite *ExtendHandlerTestSuite) TestExtendUnknownInstance() {
	recorder := suite.get("/extend/no-such-instance")

	assert.Equal(suite.T(), http.StatusNotFound, recorder.Code)
	assert.Contains(suite.T(), recorder.Body.String(), "could not find a pending extension request")
}

func (suite *ExtendHandlerTestSuite) TestExtendRepeatedClicks() {
	instance := suite.createTestInstance()

	first := suite.get("/extend/" + instance.ID)
	second := suite.get("/extend/" + instance.ID)

	assert.Equal(suite.T(), http.StatusOK, first.Code)
	assert.Equal(suite.T(), http.StatusOK, second.Code)
}

func (suite *ExtendHandlerTestSuite) TestExtendAfterResolution() {
	instance := suite.createTestInstance()
	require.NoError(suite.T(), suite.instances.MarkPhase(suite.ctx, instance.ID, domain.PhaseExtended))

	recorder := suite.get("/extend/" + instance.ID)

	// A late click is still a friendly page, not an error.
	assert.Equal(suite.T(), http.StatusOK, recorder.Code)
}

func (suite *ExtendHandlerTestSuite) TestGetInstance() {
	instance := suite.createTestInstance()
	deadline := time.Now().UTC().Add(24 * time.Hour)
	require.NoError(suite.T(), suite.instances.ArmDeadline(suite.ctx, instance.ID, deadline))

	recorder := suite.get("/api/v1/instances/" + instance.ID)

	assert.Equal(suite.T(), http.StatusOK, recorder.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(recorder.Body.Bytes(), &resp)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), instance.ID, resp["id"])
	assert.Equal(suite.T(), "rg-spring-clean-test", resp["resource_group"])
	assert.Equal(suite.T(), string(domain.PhaseAwaitingResponse), resp["phase"])
	assert.NotEmpty(suite.T(), resp["response_deadline"])
	assert.NotContains(suite.T(), resp, "signaled_at")
	assert.NotContains(suite.T(), resp, "failure")
}

func (suite *ExtendHandlerTestSuite) TestGetInstanceNotFound() {
	recorder := suite.get("/api/v1/instances/no-such-instance")

	assert.Equal(suite.T(), http.StatusNotFound, recorder.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(recorder.Body.Bytes(), &resp)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "instance not found", resp["error"])
}

func TestExtendHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(ExtendHandlerTestSuite))
}
