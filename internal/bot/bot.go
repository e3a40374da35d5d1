// Package bot is the Telegram front end: chat commands become engine calls and due-date
// reminders are delivered as chat messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskdeck/internal/logger"
	"taskdeck/internal/model"
	"taskdeck/internal/notify"
	"taskdeck/internal/service"
	"taskdeck/internal/view"
)

// Engine is the part of the session the bot drives.
type Engine interface {
	FilteredTasks(search string, filter view.StatusFilter) []model.Task
	Task(id model.TaskID) (model.Task, bool)
	Progress(t model.Task) view.Progress
	Aggregates() view.Aggregates
	Refresh(ctx context.Context) error
	ToggleComplete(ctx context.Context, id model.TaskID) error
	ToggleSubtask(ctx context.Context, id model.TaskID, index int) error
	SubmitForm(ctx context.Context, editID model.TaskID, form model.TaskFields) (model.TaskID, error)
	DeleteTask(ctx context.Context, id model.TaskID) error
}

// api is the subset of *tgbotapi.BotAPI in use.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageNotes
	stageCategory
	stageDeadline
	stageReminder
	stageSubtasks
)

type conversationState struct {
	stage conversationStage
	form  model.TaskFields
}

// Bot serves exactly one chat.
type Bot struct {
	api           api
	engine        Engine
	chatID        int64
	loc           *time.Location
	now           func() time.Time
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, chatID int64, engine Engine, loc *time.Location) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	logger.Info(context.Background(), "bot authorized", "account", botAPI.Self.UserName)
	return newBot(botAPI, chatID, engine, loc), nil
}

func newBot(a api, chatID int64, engine Engine, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:           a,
		engine:        engine,
		chatID:        chatID,
		loc:           loc,
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.Info(ctx, "start polling updates", "chat", b.chatID)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.dispatch(ctx, update)
	}
	return ctx.Err()
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat == nil || cb.Message.Chat.ID != b.chatID {
			return
		}
		if err := b.handleCallback(ctx, cb); err != nil {
			logger.Error(ctx, err, "handle callback", "data", cb.Data)
		}
	case update.Message != nil:
		msg := update.Message
		if msg.Chat == nil || msg.Chat.ID != b.chatID {
			logger.Debug(ctx, "ignoring message from foreign chat")
			return
		}
		if err := b.handleMessage(ctx, msg); err != nil {
			logger.Error(ctx, err, "handle message")
		}
	}
}

// NotifyReminder sends a due-date reminder with a button that opens the task.
func (b *Bot) NotifyReminder(ctx context.Context, r notify.Reminder) error {
	text := fmt.Sprintf("🔔 <b>Reminder</b>\nIt's time for: %s\n⏰ %s",
		escape(normalizeTitle(r.Title)), r.Due.In(b.loc).Format(dueLayout))
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = openKeyboard(r.TaskID)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send reminder for task %s: %w", r.TaskID, err)
	}
	return nil
}

var _ notify.SystemNotifier = (*Bot)(nil)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		logger.Info(ctx, "command", "cmd", msg.Command(), "args", msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.Chat.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Send /new to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		return b.handleHelp(msg.Chat.ID)
	case "tasks":
		return b.handleListTasks(msg.Chat.ID, args)
	case "task":
		return b.withTaskID(msg.Chat.ID, args, "/task 12", func(id model.TaskID) error {
			return b.sendTaskDetail(msg.Chat.ID, id)
		})
	case "done":
		return b.withTaskID(msg.Chat.ID, args, "/done 12", func(id model.TaskID) error {
			return b.toggleAndReport(ctx, msg.Chat.ID, id)
		})
	case "sub":
		return b.handleSubtask(ctx, msg.Chat.ID, args)
	case "delete":
		return b.withTaskID(msg.Chat.ID, args, "/delete 12", func(id model.TaskID) error {
			return b.askDeleteConfirmation(msg.Chat.ID, id)
		})
	case "dashboard":
		return b.sendText(msg.Chat.ID, formatDashboard(b.engine.Aggregates()))
	case "refresh":
		if err := b.engine.Refresh(ctx); err != nil {
			return b.sendText(msg.Chat.ID, "Refresh failed: "+escape(service.UserMessage(err)))
		}
		return b.handleListTasks(msg.Chat.ID, nil)
	case "new":
		return b.startNewTaskConversation(msg.Chat.ID)
	case "cancel":
		b.clearConversation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "⏪ Task input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleHelp(chatID int64) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /tasks [all|completed|pending] [search] — list tasks\n" +
		"• /task &lt;id&gt; — task details\n" +
		"• /done &lt;id&gt; — toggle completion\n" +
		"• /sub &lt;id&gt; &lt;n&gt; — toggle subtask n\n" +
		"• /delete &lt;id&gt; — delete a task\n" +
		"• /new — add a task step by step\n" +
		"• /dashboard — counters and categories\n" +
		"• /refresh — reload from the server\n" +
		"• /cancel — cancel the current input"
	return b.sendText(chatID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(msg.Text) {
	case menuLabelNewTask:
		return true, b.startNewTaskConversation(msg.Chat.ID)
	case menuLabelTasks:
		return true, b.handleListTasks(msg.Chat.ID, nil)
	case menuLabelDashboard:
		return true, b.sendText(msg.Chat.ID, formatDashboard(b.engine.Aggregates()))
	case menuLabelHelp:
		return true, b.handleHelp(msg.Chat.ID)
	default:
		return false, nil
	}
}

// handleListTasks accepts an optional status filter followed by search words.
func (b *Bot) handleListTasks(chatID int64, args []string) error {
	filter := view.FilterAll
	if len(args) > 0 {
		if f, ok := view.ParseStatusFilter(args[0]); ok {
			filter = f
			args = args[1:]
		}
	}
	search := strings.Join(args, " ")

	tasks := b.engine.FilteredTasks(search, filter)
	text := formatTaskList(tasks, b.engine.Progress, filter, search, b.now(), b.loc)
	if len(tasks) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, taskListKeyboard(tasks))
}

func (b *Bot) sendTaskDetail(chatID int64, id model.TaskID) error {
	task, ok := b.engine.Task(id)
	if !ok {
		return b.sendText(chatID, "Task not found.")
	}
	text := formatTaskDetail(task, b.engine.Progress(task), b.now(), b.loc)
	return b.sendWithReplyMarkup(chatID, text, taskDetailKeyboard(task))
}

func (b *Bot) toggleAndReport(ctx context.Context, chatID int64, id model.TaskID) error {
	if err := b.engine.ToggleComplete(ctx, id); err != nil {
		return b.sendText(chatID, escape(service.UserMessage(err)))
	}
	task, ok := b.engine.Task(id)
	if !ok {
		return nil
	}
	if task.Completed {
		return b.sendText(chatID, fmt.Sprintf("✅ «%s» completed.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ «%s» is pending again.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleSubtask(ctx context.Context, chatID int64, args []string) error {
	if len(args) != 2 {
		return b.sendText(chatID, "Usage: /sub 12 2")
	}
	id, err := model.ParseTaskID(args[0])
	if err != nil {
		return b.sendText(chatID, "Task id must be a number.")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return b.sendText(chatID, "Subtask number must be 1 or greater.")
	}
	if err := b.engine.ToggleSubtask(ctx, id, n-1); err != nil {
		return b.sendText(chatID, escape(service.UserMessage(err)))
	}
	return b.sendTaskDetail(chatID, id)
}

func (b *Bot) askDeleteConfirmation(chatID int64, id model.TaskID) error {
	task, ok := b.engine.Task(id)
	if !ok {
		return b.sendText(chatID, "Task not found.")
	}
	text := fmt.Sprintf("Delete task \"%s\" (#%s)?", escape(normalizeTitle(task.Title)), task.ID)
	return b.sendWithReplyMarkup(chatID, text, confirmDeleteKeyboard(task.ID))
}

func (b *Bot) deleteAndReport(ctx context.Context, chatID int64, id model.TaskID) error {
	task, ok := b.engine.Task(id)
	if !ok {
		return b.sendText(chatID, "Task not found or already deleted.")
	}
	if err := b.engine.DeleteTask(ctx, id); err != nil {
		return b.sendText(chatID, escape(service.UserMessage(err)))
	}
	logger.Info(ctx, "task deleted", "task", id)
	return b.sendText(chatID, fmt.Sprintf("🗑 Task \"%s\" deleted.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		logger.Warn(ctx, "callback ack failed", "err", err)
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	var (
		id  model.TaskID
		err error
	)
	switch {
	case strings.HasPrefix(data, cbCancelPrefix):
		return b.sendText(chatID, "Cancelled.")
	case strings.HasPrefix(data, cbOpenPrefix):
		if id, err = parseCallbackID(data, cbOpenPrefix); err == nil {
			return b.sendTaskDetail(chatID, id)
		}
	case strings.HasPrefix(data, cbTogglePrefix):
		if id, err = parseCallbackID(data, cbTogglePrefix); err == nil {
			return b.toggleAndReport(ctx, chatID, id)
		}
	case strings.HasPrefix(data, cbDeletePrefix):
		if id, err = parseCallbackID(data, cbDeletePrefix); err == nil {
			return b.askDeleteConfirmation(chatID, id)
		}
	case strings.HasPrefix(data, cbConfirmPrefix):
		if id, err = parseCallbackID(data, cbConfirmPrefix); err == nil {
			return b.deleteAndReport(ctx, chatID, id)
		}
	default:
		return nil
	}
	logger.Warn(ctx, "malformed callback data", "data", data, "err", err)
	return nil
}

func (b *Bot) withTaskID(chatID int64, args []string, example string, fn func(model.TaskID) error) error {
	if len(args) == 0 {
		return b.sendText(chatID, "Give a task id, e.g. "+example)
	}
	id, err := model.ParseTaskID(args[0])
	if err != nil {
		return b.sendText(chatID, "Task id must be a number.")
	}
	return fn(id)
}

func (b *Bot) startNewTaskConversation(chatID int64) error {
	b.setConversation(chatID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(chatID, "🆕 New task.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.Chat.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Title is required.", cancelKeyboard())
		}
		state.form.Title = text
		state.stage = stageNotes
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Any notes? (or Skip)", skipKeyboard())
	case stageNotes:
		if !isSkipInput(text) {
			state.form.Notes = text
		}
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 Pick a category.", categoryKeyboard())
	case stageCategory:
		if !isSkipInput(text) {
			state.form.Category = model.Category(strings.ToLower(text))
		}
		state.stage = stageDeadline
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2026-11-30 18:00</code> (or Skip).", skipKeyboard())
	case stageDeadline:
		if isSkipInput(text) {
			state.stage = stageSubtasks
			return b.sendWithReplyMarkup(msg.Chat.ID, "☑️ Subtasks, separated by <code>;</code> (or Skip).", skipKeyboard())
		}
		due, err := parseLocalTime(text, b.loc)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30 18:00</code> or Skip.", skipKeyboard())
		}
		state.form.DueDate = model.NewTimestamp(due)
		state.stage = stageReminder
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔔 Remind how many minutes before? (or Skip)", skipKeyboard())
	case stageReminder:
		if !isSkipInput(text) {
			minutes, err := strconv.Atoi(text)
			if err != nil || minutes <= 0 {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Minutes must be a positive number.", skipKeyboard())
			}
			state.form.ReminderMinutes = &minutes
		}
		state.stage = stageSubtasks
		return b.sendWithReplyMarkup(msg.Chat.ID, "☑️ Subtasks, separated by <code>;</code> (or Skip).", skipKeyboard())
	case stageSubtasks:
		if !isSkipInput(text) {
			for _, part := range strings.Split(text, ";") {
				state.form.Subtasks = append(state.form.Subtasks, model.Subtask{Text: part})
			}
		}
		b.clearConversation(msg.Chat.ID)
		return b.finishTaskCreation(ctx, msg.Chat.ID, state.form)
	default:
		b.clearConversation(msg.Chat.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Try again with /new.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, form model.TaskFields) error {
	id, err := b.engine.SubmitForm(ctx, 0, form)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			return b.sendText(chatID, escape(verr.Message))
		}
		return b.sendText(chatID, "Could not save the task: "+escape(service.UserMessage(err)))
	}
	logger.Info(ctx, "task created", "task", id)
	if _, ok := b.engine.Task(id); ok {
		return b.sendTaskDetail(chatID, id)
	}
	return b.sendText(chatID, fmt.Sprintf("✅ Task #%s saved.", id))
}

// parseLocalTime reads user input in the bot's zone. Inputs with an explicit offset keep it.
func parseLocalTime(raw string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{dueLayout, "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), loc); err == nil {
			return t, nil
		}
	}
	return model.ParseTime(raw)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) hasConversation(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[chatID]
	return ok
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}
