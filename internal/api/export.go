package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"support-chat/backend/internal/models"
	"support-chat/backend/internal/store"
	"support-chat/backend/pkg/cache"
)

// ExportController serves chat transcript downloads.
type ExportController struct {
	store store.Store
	cache *cache.Cache
}

type exportFile struct {
	contentType string
	ext         string
	body        []byte
}

// NewExportController creates a new export controller.
func NewExportController(st store.Store, c *cache.Cache) *ExportController {
	return &ExportController{store: st, cache: c}
}

// RegisterRoutes registers the export routes.
func (ec *ExportController) RegisterRoutes(router *gin.Engine) {
	router.GET("/api/chats/:chatId/export", ec.Export)
}

// Export renders a chat transcript as json, csv or txt. The json rendering
// omits soft-deleted messages; csv carries every row with its deleted flag so
// moderation history survives the export.
func (ec *ExportController) Export(ctx *gin.Context) {
	chatID := ctx.Param("chatId")
	if chatID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Chat ID is required"})
		return
	}

	format := strings.ToLower(ctx.DefaultQuery("format", "txt"))
	if format != "json" && format != "csv" {
		format = "txt"
	}

	cacheKey := "export:" + chatID + ":" + format
	if ec.cache != nil {
		if cached, ok := ec.cache.Get(cacheKey); ok {
			if file, ok := cached.(exportFile); ok {
				writeExport(ctx, chatID, file)
				return
			}
		}
	}

	msgs, err := ec.store.GetChat(ctx.Request.Context(), chatID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error retrieving chat: %v", err)})
		return
	}

	var file exportFile
	switch format {
	case "json":
		file = renderJSON(msgs)
	case "csv":
		file = renderCSV(msgs)
	default:
		file = renderText(chatID, msgs)
	}

	if ec.cache != nil {
		ec.cache.Set(cacheKey, file)
	}
	writeExport(ctx, chatID, file)
}

// InvalidateChat drops cached exports for a chat after moderation changes it.
func (ec *ExportController) InvalidateChat(chatID string) {
	if ec.cache == nil {
		return
	}
	for _, format := range []string{"json", "csv", "txt"} {
		ec.cache.Delete("export:" + chatID + ":" + format)
	}
}

func writeExport(ctx *gin.Context, chatID string, file exportFile) {
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=chat_%s.%s", chatID, file.ext))
	ctx.Data(http.StatusOK, file.contentType, file.body)
}

func renderJSON(msgs []models.ChatMessage) exportFile {
	visible := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.Deleted {
			visible = append(visible, m)
		}
	}
	body, _ := json.Marshal(visible)
	return exportFile{contentType: "application/json", ext: "json", body: body}
}

func renderCSV(msgs []models.ChatMessage) exportFile {
	var rows strings.Builder
	rows.WriteString("id,from,text,ts,deleted\n")
	for _, m := range msgs {
		text := strings.ReplaceAll(m.Text, `"`, `""`)
		fmt.Fprintf(&rows, "%s,\"%s\",\"%s\",%d,%s\n", m.ID, m.From, text, m.Ts, strconv.FormatBool(m.Deleted))
	}
	return exportFile{contentType: "text/csv", ext: "csv", body: []byte(rows.String())}
}

func renderText(chatID string, msgs []models.ChatMessage) exportFile {
	txt := fmt.Sprintf("Chat export for %s - %s\nTotal messages: %d",
		chatID, time.Now().Format("2006-01-02 15:04:05"), len(msgs))
	return exportFile{contentType: "text/plain", ext: "txt", body: []byte(txt)}
}
