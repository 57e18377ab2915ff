package main

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"

	"github.com/folkengine/goname"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-code/config"
	"github.com/tcriess/lightspeed-code/execute"
	"github.com/tcriess/lightspeed-code/globals"
	"github.com/tcriess/lightspeed-code/presence"
	"github.com/tcriess/lightspeed-code/room"
	"github.com/tcriess/lightspeed-code/suggest"
	"github.com/tcriess/lightspeed-code/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert for websocket (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key for websocket (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	coordinator *ws.Coordinator
	execClient  *execute.Client
	sugClient   *suggest.Client
)

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		globals.AppLogger.Error("interrupted!")
		os.Exit(1)
	}()

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	store := room.NewStore(globalConfig.HistorySize())
	tracker := presence.NewTracker(globalConfig.ActiveWindow(), globalConfig.TypingTimeout(), globalConfig.LineFocusTimeout())
	coordinator = ws.NewCoordinator(store, tracker, ws.NewRegistry())
	execClient = execute.NewClient(globalConfig)
	sugClient = suggest.NewClient(globalConfig)

	go coordinator.Hub().Run()
	cronRunner := coordinator.StartStatsCron()
	defer cronRunner.Stop()

	setupRoutes()

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, nil)
	} else {
		err = http.ListenAndServe(*addr, nil)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

func setupRoutes() {
	router := mux.NewRouter()
	router.HandleFunc("/", rootHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws", websocketHandler).Methods(http.MethodGet)
	router.HandleFunc("/compile", compileHandler).Methods(http.MethodPost)
	router.HandleFunc("/suggest", suggestHandler).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms", roomsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{room}", roomDetailHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/rooms/{room}/clear", roomClearHandler).Methods(http.MethodPost)
	http.Handle("/", router)
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Server is running!"))
}

// Handle incoming websockets
func websocketHandler(w http.ResponseWriter, r *http.Request) {
	nick := r.URL.Query().Get("username")
	if nick == "" {
		// guests get a provisional fantasy name, a join event may overwrite it
		nick = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close() //nolint

	connId := uuid.New().String()
	doneChan := make(chan struct{})
	client := ws.NewClient(coordinator, conn, connId, nick, doneChan)

	hub := coordinator.Hub()
	hub.Register <- client
	client.Wait()
	defer func() {
		hub.Unregister <- client
	}()

	go client.WriteLoop()
	client.ReadLoop()
	<-doneChan
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		globals.AppLogger.Error("could not write response", "error", err)
	}
}

// Compilation endpoint (JDoodle & Judge0). The call runs outside any room-state critical
// section, its latency never delays broadcast traffic.
func compileHandler(w http.ResponseWriter, r *http.Request) {
	req := execute.Request{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	result, err := execClient.Run(r.Context(), req)
	if err != nil {
		if badReq, ok := err.(*execute.BadRequestError); ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": badReq.Reason})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to compile code"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Suggestion endpoint, always answers 200 with at least one (possibly placeholder) record.
func suggestHandler(w http.ResponseWriter, r *http.Request) {
	req := suggest.Request{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return
	}
	suggestions := sugClient.Suggest(r.Context(), req)
	writeJSON(w, http.StatusOK, map[string][]suggest.Suggestion{"suggestions": suggestions})
}

func roomsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, coordinator.RoomStats())
}

func roomDetailHandler(w http.ResponseWriter, r *http.Request) {
	roomId := mux.Vars(r)["room"]
	detail, ok := coordinator.RoomDetail(roomId)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown room"})
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func roomClearHandler(w http.ResponseWriter, r *http.Request) {
	roomId := mux.Vars(r)["room"]
	if !coordinator.ClearRoom(roomId) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown room"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
