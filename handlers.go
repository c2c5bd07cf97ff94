package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"stationcodes/models"
	"stationcodes/pkg/capture"
	"stationcodes/pkg/index"
	"stationcodes/pkg/normalize"
	"stationcodes/pkg/qrgen"
	"stationcodes/pkg/recognize"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)
	r.GET("/links", linksHandler)
	r.GET("/qr", qrHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/search", searchHandler)
	authGroup.GET("/locations/suggest", suggestHandler)
	authGroup.GET("/history", historyHandler)
	authGroup.POST("/history/select", historySelectHandler)
	authGroup.POST("/scan/start", scanStartHandler)
	authGroup.POST("/scan/stop", scanStopHandler)
	authGroup.POST("/scan/switch", scanSwitchHandler)
	authGroup.POST("/scan/capture", scanCaptureHandler)
	authGroup.POST("/scan/clear", scanClearHandler)
	authGroup.GET("/scan/status", scanStatusHandler)
	authGroup.GET("/scan/devices", scanDevicesHandler)
	authGroup.POST("/scan/frame", scanFrameHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	username := usernameVal.(string)
	c.JSON(http.StatusOK, gin.H{"username": username})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Generate JWT token. Resolve role name from RoleID (we only store role_id now).
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// create refresh token
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	// generate random 32-byte token (hex)
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	// hash for storage
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	rt := models.RefreshToken{UserID: userID, TokenHash: th, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

// helper to find refresh token record by raw token string
func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

// searchResult is one resolved code in a search response.
type searchResult struct {
	Location    string `json:"location"`
	ReferenceID string `json:"reference_id"`
	Type        string `json:"type"`
	TypeDisplay string `json:"type_display"`
	TypeColor   string `json:"type_color"`
	QR          string `json:"qr"`
}

// searchHandler resolves a free-form term (single code or range) against the
// location index. Codes that resolve to nothing are dropped; a search where
// every candidate misses is a 404.
func searchHandler(c *gin.Context) {
	var req struct {
		Term string `json:"term" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	codes, err := normalize.Normalize(req.Term)
	if err != nil {
		if errors.Is(err, normalize.ErrRangeInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid range. Ensure start <= end."})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results := make([]searchResult, 0, len(codes))
	for _, code := range codes {
		entry, ok := locIndex.Find(code)
		if !ok {
			continue
		}
		results = append(results, toSearchResult(entry))
	}
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching locations found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func toSearchResult(entry index.Entry) searchResult {
	return searchResult{
		Location:    entry.Location,
		ReferenceID: entry.ReferenceID,
		Type:        entry.Area.Tag(),
		TypeDisplay: entry.Area.DisplayName(),
		TypeColor:   entry.Area.Color(),
		QR:          "/qr?payload=" + entry.ReferenceID,
	}
}

// suggestHandler returns case-insensitive substring matches for typeahead.
func suggestHandler(c *gin.Context) {
	term := c.Query("term")
	if term == "" {
		c.JSON(http.StatusOK, gin.H{"results": []searchResult{}})
		return
	}
	entries := locIndex.Suggest(term)
	if len(entries) > 50 {
		entries = entries[:50]
	}
	results := make([]searchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, toSearchResult(e))
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func historyHandler(c *gin.Context) {
	entries := scanLoop.History().List()
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"location":  e.Location,
			"type":      e.Area.Tag(),
			"color":     e.Area.Color(),
			"timestamp": e.Timestamp,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

// historySelectHandler re-runs the lookup for a previously scanned code.
// History entries hold canonical codes, so no normalization pass is needed
// and the history itself is not re-recorded.
func historySelectHandler(c *gin.Context) {
	var req struct {
		Location string `json:"location" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, ok := locIndex.Find(req.Location)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching locations found"})
		return
	}
	c.JSON(http.StatusOK, toSearchResult(entry))
}

func scanStartHandler(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id"`
	}
	// body optional; default device is picked when empty
	_ = c.ShouldBindJSON(&req)
	if err := scanLoop.Start(req.DeviceID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, scanLoop.Status())
}

func scanStopHandler(c *gin.Context) {
	scanLoop.Stop()
	c.JSON(http.StatusOK, scanLoop.Status())
}

func scanSwitchHandler(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := scanLoop.SwitchDevice(req.DeviceID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, scanLoop.Status())
}

func scanCaptureHandler(c *gin.Context) {
	if err := scanLoop.CaptureNow(); err != nil {
		status := http.StatusConflict
		if errors.Is(err, capture.ErrNotRunning) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "capture requested"})
}

func scanClearHandler(c *gin.Context) {
	scanLoop.ClearResult()
	c.JSON(http.StatusOK, scanLoop.Status())
}

func scanStatusHandler(c *gin.Context) {
	st := scanLoop.Status()
	resp := gin.H{"state": st.State}
	if st.DeviceID != "" {
		resp["device_id"] = st.DeviceID
	}
	if st.Detected != "" {
		resp["detected"] = st.Detected
	}
	if st.Result != nil {
		entry, ok := locIndex.Find(st.Result.Location)
		if ok {
			resp["result"] = toSearchResult(entry)
		} else {
			resp["result"] = st.Result
		}
	}
	if st.LastError != "" {
		resp["last_error"] = st.LastError
	}
	c.JSON(http.StatusOK, resp)
}

func scanDevicesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": capture.Devices()})
}

// scanFrameHandler runs the recognition pipeline over a single uploaded
// image. This serves clients that capture frames themselves and only need
// the OCR+lookup half of the scan flow.
func scanFrameHandler(c *gin.Context) {
	file, err := c.FormFile("frame")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame missing"})
		return
	}
	if file.Size > 10*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame too large (max 10MB)"})
		return
	}
	tmp := filepath.Join(os.TempDir(), "frame_"+strconv.FormatInt(time.Now().UnixNano(), 10)+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tmp); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	defer os.Remove(tmp)

	text, err := ocrEngine.Recognize(tmp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recognition failed"})
		return
	}
	candidate, ok := recognize.Extract(text)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no location code detected"})
		return
	}
	codes, err := normalize.Normalize(candidate)
	if err != nil || len(codes) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching locations found", "detected": candidate})
		return
	}
	entry, found := locIndex.Find(codes[0])
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no matching locations found", "detected": candidate})
		return
	}
	scanLoop.History().Record(entry.Location, entry.Area)
	c.JSON(http.StatusOK, gin.H{"detected": candidate, "result": toSearchResult(entry)})
}

// qrHandler renders a QR PNG for a payload. print=1 switches to the larger
// print sizes; count informs the single vs multi print layout.
func qrHandler(c *gin.Context) {
	payload := c.Query("payload")
	if payload == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload required"})
		return
	}
	size := 0
	if v := c.Query("size"); v != "" {
		size, _ = strconv.Atoi(v)
	}
	if c.Query("print") == "1" {
		count := 1
		if v := c.Query("count"); v != "" {
			count, _ = strconv.Atoi(v)
		}
		size = qrgen.PrintSize(count)
	}
	png, err := qrgen.PNG(payload, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type quickLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

var quickLinks = []quickLink{
	{Name: "Station Command", URL: "https://logistics.amazon.com/station/dashboard/sortBoard"},
	{Name: "Inbound", URL: "https://trans-logistics.amazon.com/ssp/dock/hrz/ib"},
	{Name: "FCLM", URL: "https://fclm-portal.amazon.com/ppa/inspect/process"},
	{Name: "Perfect Mile", URL: "https://perfectmile-na.amazon.com/dashboards/aidenngo/location/DFX3/daily?tab=54863&start-date=2022-01-30&end-date=2022-02-05&drilldowns=cycle_name/dsp"},
	{Name: "STEM", URL: "https://stem-na.corp.amazon.com/node/DFX3/equipment"},
	{Name: "Employee Time Details", URL: "https://fclm-portal.amazon.com/employee/ppaTimeDetails?warehouseId=DFX3"},
	{Name: "Apollo", URL: "https://apollo-audit.corp.amazon.com/"},
	{Name: "Routing Tools", URL: "https://routingtools-na.amazon.com/clusterTransfer.jsp"},
	{Name: "Barcode Generator", URL: "https://www.barcode-generator.de/V2/en/index.jsp"},
	{Name: "Start Ops", URL: "https://start.wwops.amazon.dev/?businessUnitId=IjE2Ig%3D%3D&topLevelFilters=eyI0IjoiNDEiLCI5NSI6IjQyNzgifQ%3D%3D"},
}

func linksHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"links": quickLinks})
}
