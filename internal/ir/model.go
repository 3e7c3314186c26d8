package ir

// User is a credential triple accepted by POST /api/users.
type User struct {
	Name     string `json:"name" yaml:"name"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Blog holds the attributes typed into the "new blog" form.
// Likes is not applied by the form; it records the count a scenario intends.
type Blog struct {
	Title  string `json:"title" yaml:"title"`
	Author string `json:"author" yaml:"author"`
	URL    string `json:"url" yaml:"url"`
	Likes  int    `json:"likes,omitempty" yaml:"likes,omitempty"`
}

// Texts are the literal UI strings the scenarios assert on.
type Texts struct {
	Heading          string `json:"heading" yaml:"heading"`
	Footer           string `json:"footer" yaml:"footer"`
	WrongCredentials string `json:"wrong_credentials" yaml:"wrong_credentials"`
	LoggedInSuffix   string `json:"logged_in_suffix" yaml:"logged_in_suffix"`
}

type Fixtures struct {
	Users   []User `json:"users" yaml:"users"`
	NewBlog Blog   `json:"new_blog" yaml:"new_blog"`
	Blogs   []Blog `json:"blogs" yaml:"blogs"`
	Texts   Texts  `json:"texts" yaml:"texts"`
}

// Owner is the account that logs in first and creates every blog.
func (f *Fixtures) Owner() User { return f.Users[0] }

// Other is a second account that did not create any blog.
func (f *Fixtures) Other() User { return f.Users[1] }
