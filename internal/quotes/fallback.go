package quotes

import "quotecast/internal/models"

// LocalQuotes is served when neither upstream nor the cache has anything.
var LocalQuotes = []models.Quote{
	{Quote: "Life is what happens while you are busy making other plans.", Author: "John Lennon"},
	{Quote: "The only way to do great work is to love what you do.", Author: "Steve Jobs"},
	{Quote: "In the middle of difficulty lies opportunity.", Author: "Albert Einstein"},
	{Quote: "Stay hungry, stay foolish.", Author: "Steve Jobs"},
	{Quote: "The secret of getting ahead is getting started.", Author: "Mark Twain"},
}
