// Command voicechat runs a hands-free conversation session against a running
// gateway, using a websocket transcription service for input and writing
// synthesized replies to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/medabroad/consult/pkg/core/speech/tts"
	"github.com/medabroad/consult/pkg/voice"
)

type fileSink struct {
	dir    string
	logger *slog.Logger
	n      int
}

func (f *fileSink) Play(ctx context.Context, audio []byte, mimeType string) error {
	f.n++
	ext := ".mp3"
	if mimeType != "audio/mpeg" {
		ext = ".bin"
	}
	path := filepath.Join(f.dir, fmt.Sprintf("reply-%03d%s", f.n, ext))
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return err
	}
	f.logger.Info("reply written", "path", path, "bytes", len(audio))
	return ctx.Err()
}

func main() {
	_ = godotenv.Load()

	var (
		gatewayURL = flag.String("gateway", "http://localhost:8080", "gateway base URL")
		sttURL     = flag.String("stt-ws", os.Getenv("CONSULT_STT_WS_URL"), "websocket transcription URL")
		email      = flag.String("email", "", "owner email for the session")
		voiceID    = flag.String("voice", os.Getenv("CONSULT_ELEVENLABS_VOICE"), "TTS voice id")
		outDir     = flag.String("out", ".", "directory for synthesized replies")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *sttURL == "" {
		logger.Error("a websocket transcription URL is required (-stt-ws or CONSULT_STT_WS_URL)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conversation := voice.NewConversation(voice.NewChatClient(*gatewayURL), *email)
	synth := tts.NewFallback(
		tts.NewElevenLabs(os.Getenv("ELEVENLABS_API_KEY")),
		tts.NewOpenAI(os.Getenv("OPENAI_API_KEY")),
		logger)
	speaker := voice.NewSynthesisSpeaker(synth,
		&fileSink{dir: *outDir, logger: logger},
		*voiceID, logger)

	sttKey := os.Getenv("CONSULT_STT_API_KEY")
	session := voice.NewSession(voice.Config{
		Chat:       conversation,
		Recognizer: voice.NewWSRecognizer(*sttURL, sttKey, logger),
		Interrupts: voice.NewWSRecognizer(*sttURL, sttKey, logger),
		Speaker:    speaker,
		Logger:     logger,
		OnStateChange: func(st voice.State) {
			logger.Info("state", "state", st)
		},
	})

	logger.Info("starting voice session", "session_id", conversation.SessionID())
	go func() {
		time.Sleep(100 * time.Millisecond)
		session.Start()
	}()

	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("session ended", "error", err)
		os.Exit(1)
	}
}
