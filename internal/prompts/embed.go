package prompts

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed templates/*.txt.tmpl
var promptsFS embed.FS

// FS returns the embedded filesystem for prompts in this package.
func FS() fs.FS {
	if sub, err := fs.Sub(promptsFS, "templates"); err == nil {
		return sub
	}
	return promptsFS
}

// PathFor returns canonical template path from logical name.
// Supports variants via name like "menu_user@v2" -> menu_user@v2.txt.tmpl
func PathFor(name string) string {
	return fmt.Sprintf("%s.txt.tmpl", name)
}

// Template names rendered by the menu analyzer.
const (
	MenuSystem = "menu_system"
	MenuUser   = "menu_user"
)

// StandardAllergens are the keys the model is asked to use.
var StandardAllergens = []string{
	"gluten", "crustaceans", "egg", "fish", "peanut", "soy", "milk", "tree nuts",
	"celery", "mustard", "sesame", "sulphites", "lupin", "molluscs",
}

// MenuSystemData feeds menu_system.
type MenuSystemData struct {
	Allergens []string
}

// MenuUserData feeds menu_user.
type MenuUserData struct {
	RestaurantHint string
	Language       string
	UserAllergens  []string
}
