package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"townsq/internal/adapter/rest"
	"townsq/internal/domain/service"
	"townsq/internal/infrastructure/notify"
	ws "townsq/internal/infrastructure/websocket"
	"townsq/internal/usecase"
	"townsq/pkg/config"
)

func main() {
	userID := flag.String("user", "user-ana", "seeded user id to chat as")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	token := cfg.AuthToken
	if token == "" {
		token, err = fetchDevToken(cfg.APIBaseURL, *userID)
		if err != nil {
			log.Fatalf("Failed to fetch a dev token: %v", err)
		}
	}
	tokens := service.StaticToken(token)

	api := rest.NewClient(cfg.APIBaseURL, nil, tokens)
	socket := ws.NewSocket(cfg.SocketURL, tokens)

	notifier := notify.NewLogNotifier()
	notifier.RequestPermission()

	messenger := usecase.NewMessenger(*userID, api, socket, notifier, usecase.MessengerOptions{
		TypingDebounce: cfg.TypingDebounce,
		TypingTTL:      cfg.TypingTTL,
		SendExpiry:     cfg.SendExpiry,
	})
	defer messenger.Close()

	ctx := context.Background()
	if err := socket.Connect(ctx); err != nil {
		log.Printf("Socket unavailable, falling back to REST: %v", err)
	}
	defer socket.Close()

	if err := messenger.Inbox.LoadChats(ctx); err != nil {
		log.Printf("Could not load conversations: %v (retry with /list)", err)
	}

	fmt.Printf("Signed in as %s. Commands: /list [filter], /open <n>, /start <business-slug>, /typists, /back, /quit\n", *userID)
	printChats(messenger, "")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case line == "/quit":
			return

		case line == "/back":
			messenger.Deselect()
			printChats(messenger, "")

		case line == "/typists":
			fmt.Printf("typing: %v\n", messenger.Typing.Typists())

		case strings.HasPrefix(line, "/list"):
			filter := strings.TrimSpace(strings.TrimPrefix(line, "/list"))
			if err := messenger.Inbox.LoadChats(ctx); err != nil {
				log.Printf("Could not load conversations: %v", err)
			}
			printChats(messenger, filter)

		case strings.HasPrefix(line, "/open "):
			arg := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			chats := messenger.Inbox.Chats("")
			index, err := strconv.Atoi(arg)
			if err != nil || index < 1 || index > len(chats) {
				fmt.Println("usage: /open <n> (from /list)")
				continue
			}
			chatID := chats[index-1].ID
			if err := messenger.SelectChat(ctx, chatID); err != nil {
				log.Printf("Could not open conversation: %v", err)
				continue
			}
			printThread(messenger)

		case strings.HasPrefix(line, "/start "):
			slug := strings.TrimSpace(strings.TrimPrefix(line, "/start "))
			business, err := api.GetBusiness(ctx, slug)
			if err != nil {
				log.Printf("Unknown business %q: %v", slug, err)
				continue
			}
			chatID, err := messenger.Inbox.StartChat(ctx, business.ID)
			if err != nil {
				log.Printf("Could not start conversation: %v", err)
				continue
			}
			if err := messenger.SelectChat(ctx, chatID); err != nil {
				log.Printf("Could not open conversation: %v", err)
				continue
			}
			printThread(messenger)

		default:
			if messenger.ActiveChat() == "" {
				fmt.Println("open a conversation first (/open <n>)")
				continue
			}
			messenger.Keystroke()
			if err := messenger.Send(ctx, line, nil); err != nil {
				log.Printf("Send failed: %v (draft restored: %q)", err, messenger.Thread.Draft(messenger.ActiveChat()))
				continue
			}
			printThread(messenger)
		}
	}
}

func printChats(m *usecase.Messenger, filter string) {
	chats := m.Inbox.Chats(filter)
	fmt.Printf("-- %d conversations, %d unread --\n", len(chats), m.Inbox.TotalUnread())
	for i, chat := range chats {
		preview := ""
		if chat.LastMessage != nil {
			preview = chat.LastMessage.Content
		}
		fmt.Printf("%2d. %-24s [%d unread] %s\n", i+1, chat.Business.Name, chat.UnreadCount, preview)
	}
}

func printThread(m *usecase.Messenger) {
	for _, msg := range m.ThreadMessages() {
		marker := " "
		if msg.IsTemp() {
			marker = "…"
		} else if msg.IsRead {
			marker = "✓"
		}
		fmt.Printf("[%s] %s%s %s\n", msg.CreatedAt.Format("15:04"), msg.SenderID, marker, msg.Content)
	}
}

func fetchDevToken(baseURL, userID string) (string, error) {
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(baseURL+"/dev/token", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var envelope struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}
	if envelope.Data.Token == "" {
		return "", fmt.Errorf("no token in response (status %d)", resp.StatusCode)
	}
	return envelope.Data.Token, nil
}
