package main

import (
	"fmt"
	"souschef/models"
	"souschef/voice"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	app            *tview.Application
	pages          *tview.Pages
	flex           *tview.Flex
	recipeList     *tview.List
	recipeView     *tview.TextView
	transcriptView *tview.TextView
	position       *tview.TextView
	helpView       *tview.TextView
	photoWindow    *tview.InputField
	recipeRows     []models.RecipeRow
	selectedRecipe *models.Recipe
	indexLine      = "F12 to show keys help; voice: %s; recipe: %s; model: %s"
	helpText       = `
[yellow]F2[white]: start/stop voice assistant for selected recipe
[yellow]F3[white]: finish listening early (or Enter while listening)
[yellow]F4[white]: generate recipes from an ingredient photo
[yellow]F8[white]: delete selected recipe
[yellow]F12[white]: this help

Press Enter to go back
`
)

func updateStatusLine() {
	title := "none"
	if selectedRecipe != nil {
		title = selectedRecipe.Title
	}
	position.SetText(fmt.Sprintf(indexLine, conversation.State(), title, cfg.GeminiModel))
}

func recipeToText(r *models.Recipe) string {
	text := fmt.Sprintf("[-:-:b]%s[-:-:-]\n%s\n\n", r.Title, r.Summary)
	text += fmt.Sprintf("[yellow]%d min | serves %d | %s[white]\n\n",
		r.CookingTime, r.Servings, r.Difficulty)
	text += "[-:-:b]Ingredients[-:-:-]\n"
	for _, ing := range r.Ingredients {
		text += "- " + ing + "\n"
	}
	text += "\n[-:-:b]Instructions[-:-:-]\n"
	for i, step := range r.Instructions {
		text += fmt.Sprintf("%d. %s\n", i+1, step)
	}
	return text
}

func historyToText(history []models.RoleMsg) string {
	text := ""
	for i, msg := range history {
		text += msg.ToText(i)
	}
	return text
}

func updateTranscript() {
	if conversation.IsActive() {
		transcriptView.SetText(historyToText(conversation.History()))
		transcriptView.ScrollToEnd()
		return
	}
	if selectedRecipe == nil {
		transcriptView.SetText("")
		return
	}
	// show the last saved conversation about this recipe
	sessions, err := store.ListSessionsByRecipe(selectedRecipe.ID)
	if err != nil || len(sessions) == 0 {
		transcriptView.SetText("")
		return
	}
	history, err := sessions[len(sessions)-1].ToHistory()
	if err != nil {
		logger.Error("failed to decode saved transcript", "error", err)
		return
	}
	transcriptView.SetText(historyToText(history))
}

func loadRecipeList() {
	rows, err := store.ListRecipes()
	if err != nil {
		logger.Error("failed to list recipes", "error", err)
		return
	}
	recipeRows = rows
	recipeList.Clear()
	for _, row := range recipeRows {
		recipeList.AddItem(row.Title, row.ID, 0, nil)
	}
}

func selectRecipe(index int) {
	if index < 0 || index >= len(recipeRows) {
		selectedRecipe = nil
		recipeView.SetText("")
		updateTranscript()
		updateStatusLine()
		return
	}
	r, err := recipeRows[index].ToRecipe()
	if err != nil {
		logger.Error("failed to decode recipe", "error", err, "id", recipeRows[index].ID)
		return
	}
	selectedRecipe = r
	recipeView.SetText(recipeToText(r))
	recipeView.ScrollToBeginning()
	updateTranscript()
	updateStatusLine()
}

// saveTranscript persists the finished conversation for transcript display.
func saveTranscript(recipeID string, history []models.RoleMsg) {
	if len(history) < 2 {
		// greeting alone is not worth keeping
		return
	}
	msgs, err := models.HistoryToSJSON(history)
	if err != nil {
		logger.Error("failed to serialize transcript", "error", err)
		return
	}
	maxID, err := store.SessionGetMaxID()
	if err != nil {
		logger.Error("failed to get session id", "error", err)
		return
	}
	now := time.Now()
	if _, err := store.UpsertSession(&models.VoiceSession{
		ID:        maxID + 1,
		RecipeID:  recipeID,
		Msgs:      msgs,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		logger.Error("failed to save transcript", "error", err)
	}
}

func toggleVoice() {
	if conversation.IsActive() {
		conversation.Toggle(models.RecipeContext{})
		return
	}
	if selectedRecipe == nil {
		return
	}
	conversation.Toggle(selectedRecipe.Context())
}

func generateFromPhotoTUI(path string) {
	if generator == nil {
		logger.Error("recipe generation is not configured")
		return
	}
	if err := generateFromPhoto(path); err != nil {
		logger.Error("failed to generate recipes", "error", err, "path", path)
		return
	}
	app.QueueUpdateDraw(func() {
		loadRecipeList()
		selectRecipe(recipeList.GetCurrentItem())
	})
}

func init() {
	theme := tview.Theme{
		PrimitiveBackgroundColor:    tcell.ColorDefault,
		ContrastBackgroundColor:     tcell.ColorGray,
		MoreContrastBackgroundColor: tcell.ColorNavy,
		BorderColor:                 tcell.ColorGray,
		TitleColor:                  tcell.ColorRed,
		GraphicsColor:               tcell.ColorBlue,
		PrimaryTextColor:            tcell.ColorOlive,
		SecondaryTextColor:          tcell.ColorYellow,
		TertiaryTextColor:           tcell.ColorOrange,
		InverseTextColor:            tcell.ColorPurple,
		ContrastSecondaryTextColor:  tcell.ColorLime,
	}
	tview.Styles = theme
	app = tview.NewApplication()
	pages = tview.NewPages()
	recipeList = tview.NewList().ShowSecondaryText(false).
		SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			selectRecipe(index)
		})
	recipeList.SetBorder(true).SetTitle("recipes")
	recipeView = tview.NewTextView().
		SetDynamicColors(true).
		SetChangedFunc(func() {
			app.Draw()
		})
	recipeView.SetBorder(true).SetTitle("recipe")
	transcriptView = tview.NewTextView().
		SetDynamicColors(true).
		SetChangedFunc(func() {
			app.Draw()
		})
	transcriptView.SetBorder(true).SetTitle("conversation")
	position = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	flex = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(recipeList, 0, 1, true).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(recipeView, 0, 3, false).
			AddItem(transcriptView, 0, 2, false).
			AddItem(position, 1, 0, false), 0, 2, false)
	conversation.SetOnChange(func() {
		// may fire from the ui goroutine; hop off it before queueing a redraw
		go app.QueueUpdateDraw(func() {
			updateTranscript()
			updateStatusLine()
		})
	})
	// fires on user stop and on internal failure alike
	conversation.SetOnSessionEnd(func(recipe models.RecipeContext, history []models.RoleMsg) {
		saveTranscript(recipe.ID, history)
	})
	photoWindow = tview.NewInputField().
		SetLabel("Image path: ").
		SetFieldWidth(60).
		SetDoneFunc(func(key tcell.Key) {
			pages.RemovePage("photo")
		})
	photoWindow.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			path := photoWindow.GetText()
			if path != "" {
				go generateFromPhotoTUI(path)
			}
		}
		return event
	})
	helpView = tview.NewTextView().SetDynamicColors(true).SetText(helpText).SetDoneFunc(func(key tcell.Key) {
		pages.RemovePage("helpView")
	})
	helpView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc, tcell.KeyEnter:
			return event
		}
		return nil
	})
	loadRecipeList()
	selectRecipe(recipeList.GetCurrentItem())
	updateStatusLine()
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyF2 {
			toggleVoice()
			return nil
		}
		if event.Key() == tcell.KeyF3 {
			conversation.FinishListening()
			return nil
		}
		if event.Key() == tcell.KeyEnter && conversation.State() == voice.StateListening {
			conversation.FinishListening()
			return nil
		}
		if event.Key() == tcell.KeyF4 {
			pages.AddPage("photo", photoWindow, true, true)
			return nil
		}
		if event.Key() == tcell.KeyF8 {
			if selectedRecipe == nil {
				return nil
			}
			if err := store.RemoveRecipe(selectedRecipe.ID); err != nil {
				logger.Error("failed to remove recipe", "error", err, "id", selectedRecipe.ID)
				return nil
			}
			loadRecipeList()
			selectRecipe(recipeList.GetCurrentItem())
			return nil
		}
		if event.Key() == tcell.KeyF12 {
			pages.AddPage("helpView", helpView, true, true)
			return nil
		}
		return event
	})
}
