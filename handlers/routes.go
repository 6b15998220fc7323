package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/stepcanvas/stepcanvas/internal/apperr"
	"github.com/stepcanvas/stepcanvas/internal/authing"
	"github.com/stepcanvas/stepcanvas/internal/friending"
	"github.com/stepcanvas/stepcanvas/internal/imaging"
	"github.com/stepcanvas/stepcanvas/internal/oidc"
	"github.com/stepcanvas/stepcanvas/internal/posting"
	"github.com/stepcanvas/stepcanvas/internal/router"
	"github.com/stepcanvas/stepcanvas/internal/wordgen"
)

// Routes implements the synchronizations between concepts. Each handler
// resolves the acting user from the session, calls into one or more
// concepts, and returns a JSON-able body; the dispatcher does the rest.
type Routes struct {
	authing   *authing.Service
	posting   *posting.Service
	friending *friending.Service
	imaging   *imaging.Service
	completer wordgen.Completer
	verifier  oidc.TokenVerifier // nil when SSO login is not configured
}

func NewRoutes(auth *authing.Service, posts *posting.Service, friends *friending.Service, images *imaging.Service, completer wordgen.Completer, verifier oidc.TokenVerifier) *Routes {
	return &Routes{
		authing:   auth,
		posting:   posts,
		friending: friends,
		imaging:   images,
		completer: completer,
		verifier:  verifier,
	}
}

// Register builds the dispatch table. Runs once at startup; the registry is
// immutable afterwards.
func (r *Routes) Register(reg *router.Registry) {
	// user session and authentication routes
	reg.Register("GET", "/session", r.getSessionUser, nil)
	reg.Register("GET", "/users", r.getUsers, nil)
	reg.Register("GET", "/users/:username", r.getUser, router.Schema{
		"username": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("POST", "/users", r.createUser, router.Schema{
		"username": {Kind: router.String, Required: true, NonEmpty: true},
		"password": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("PATCH", "/users/username", r.updateUsername, router.Schema{
		"username": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("PATCH", "/users/password", r.updatePassword, router.Schema{
		"currentPassword": {Kind: router.String, Required: true},
		"newPassword":     {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("DELETE", "/users", r.deleteUser, nil)
	reg.Register("POST", "/login", r.logIn, router.Schema{
		"username": {Kind: router.String, Required: true, NonEmpty: true},
		"password": {Kind: router.String, Required: true},
	})
	reg.Register("POST", "/login/sso", r.logInSSO, router.Schema{
		"idToken": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("POST", "/logout", r.logOut, nil)

	// post routes
	reg.Register("GET", "/posts", r.getPosts, router.Schema{
		"author": {Kind: router.String},
	})
	reg.Register("POST", "/posts", r.createPost, router.Schema{
		"content": {Kind: router.String, Required: true, NonEmpty: true},
		"options": {Kind: router.Object},
	})
	reg.Register("PATCH", "/posts/:id", r.updatePost, router.Schema{
		"id":      {Kind: router.String, Required: true},
		"content": {Kind: router.String},
		"options": {Kind: router.Object},
	})
	reg.Register("DELETE", "/posts/:id", r.deletePost, router.Schema{
		"id": {Kind: router.String, Required: true},
	})

	// friend routes
	reg.Register("GET", "/friends", r.getFriends, nil)
	reg.Register("DELETE", "/friends/:friend", r.removeFriend, router.Schema{
		"friend": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("GET", "/friend/requests", r.getRequests, nil)
	reg.Register("POST", "/friend/requests/:to", r.sendFriendRequest, router.Schema{
		"to": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("DELETE", "/friend/requests/:to", r.removeFriendRequest, router.Schema{
		"to": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("PUT", "/friend/accept/:from", r.acceptFriendRequest, router.Schema{
		"from": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("PUT", "/friend/reject/:from", r.rejectFriendRequest, router.Schema{
		"from": {Kind: router.String, Required: true, NonEmpty: true},
	})

	// image routes
	reg.Register("POST", "/images", r.createImage, router.Schema{
		"parent":        {Kind: router.String},
		"coordinate":    {Kind: router.String, Required: true},
		"type":          {Kind: router.String, Required: true},
		"step":          {Kind: router.String, Required: true},
		"prompt":        {Kind: router.String},
		"originalImage": {Kind: router.String},
		"steppedImage":  {Kind: router.String},
		"promptedImage": {Kind: router.String},
	})
	reg.Register("GET", "/images/author/:author", r.getImagesByAuthor, router.Schema{
		"author": {Kind: router.String, Required: true},
	})
	reg.Register("DELETE", "/images/author/:authorId", r.deleteImagesByAuthor, router.Schema{
		"authorId": {Kind: router.String, Required: true},
	})
	reg.Register("POST", "/images/similar-words", r.generateSimilarWords, router.Schema{
		"prompt": {Kind: router.String, Required: true, NonEmpty: true},
	})
	reg.Register("GET", "/images/:id", r.getImageByID, router.Schema{
		"id": {Kind: router.String, Required: true},
	})
	reg.Register("PATCH", "/images/:id", r.updateImage, router.Schema{
		"id":            {Kind: router.String, Required: true},
		"coordinate":    {Kind: router.String},
		"type":          {Kind: router.String},
		"step":          {Kind: router.String},
		"prompt":        {Kind: router.String},
		"originalImage": {Kind: router.String},
		"steppedImage":  {Kind: router.String},
		"promptedImage": {Kind: router.String},
	})
	reg.Register("GET", "/images/:id/original", r.getImageOriginal, router.Schema{
		"id": {Kind: router.String, Required: true},
	})

	// word generation
	reg.Register("POST", "/chatgpt", r.generateWordList, router.Schema{
		"inputText": {Kind: router.String, Required: true, NonEmpty: true},
	})
}

func (r *Routes) getSessionUser(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	return r.authing.GetByID(ctx, user)
}

func (r *Routes) getUsers(ctx context.Context, call *router.Call) (any, error) {
	return r.authing.GetUsers(ctx)
}

func (r *Routes) getUser(ctx context.Context, call *router.Call) (any, error) {
	return r.authing.GetByUsername(ctx, call.Params.GetString("username"))
}

func (r *Routes) createUser(ctx context.Context, call *router.Call) (any, error) {
	if err := call.Session.IsLoggedOut(); err != nil {
		return nil, err
	}
	user, err := r.authing.Create(ctx, call.Params.GetString("username"), call.Params.GetString("password"))
	if err != nil {
		return nil, err
	}
	return gin.H{"msg": "User created successfully!", "user": user}, nil
}

func (r *Routes) updateUsername(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	updated, err := r.authing.UpdateUsername(ctx, user, call.Params.GetString("username"))
	if err != nil {
		return nil, err
	}
	return gin.H{"msg": "Username updated successfully!", "user": updated}, nil
}

func (r *Routes) updatePassword(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	if err := r.authing.UpdatePassword(ctx, user, call.Params.GetString("currentPassword"), call.Params.GetString("newPassword")); err != nil {
		return nil, err
	}
	return gin.H{"msg": "Password updated successfully!"}, nil
}

func (r *Routes) deleteUser(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	call.Session.End()
	if err := r.authing.Delete(ctx, user); err != nil {
		return nil, err
	}
	return gin.H{"msg": "User deleted!"}, nil
}

func (r *Routes) logIn(ctx context.Context, call *router.Call) (any, error) {
	user, err := r.authing.Authenticate(ctx, call.Params.GetString("username"), call.Params.GetString("password"))
	if err != nil {
		return nil, err
	}
	call.Session.Start(user)
	return gin.H{"msg": "Logged in!"}, nil
}

// logInSSO verifies an OIDC id token and starts a session for the matching
// local user. The token's preferred_username (falling back to sub) must name
// an existing account.
func (r *Routes) logInSSO(ctx context.Context, call *router.Call) (any, error) {
	if r.verifier == nil {
		return nil, &apperr.NotAllowed{Reason: "SSO login is not configured"}
	}
	tok, err := r.verifier.Verify(ctx, call.Params.GetString("idToken"))
	if err != nil {
		return nil, &apperr.NotAllowed{Reason: "invalid id token"}
	}
	var claims map[string]any
	if err := tok.Claims(&claims); err != nil {
		return nil, &apperr.Upstream{Service: "oidc", Err: err}
	}
	username, _ := claims["preferred_username"].(string)
	if username == "" {
		username, _ = claims["sub"].(string)
	}
	if username == "" {
		return nil, &apperr.NotAllowed{Reason: "id token carries no username"}
	}
	user, err := r.authing.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	call.Session.Start(user.ID)
	return gin.H{"msg": "Logged in!"}, nil
}

func (r *Routes) logOut(ctx context.Context, call *router.Call) (any, error) {
	call.Session.End()
	return gin.H{"msg": "Logged out!"}, nil
}

func (r *Routes) getPosts(ctx context.Context, call *router.Call) (any, error) {
	if author := call.Params.GetString("author"); author != "" {
		u, err := r.authing.GetByUsername(ctx, author)
		if err != nil {
			return nil, err
		}
		return r.posting.GetByAuthor(ctx, u.ID)
	}
	return r.posting.GetPosts(ctx)
}

func (r *Routes) createPost(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	options, _ := call.Params["options"].(map[string]any)
	post, err := r.posting.Create(ctx, user, call.Params.GetString("content"), options)
	if err != nil {
		return nil, err
	}
	return gin.H{"msg": "Post successfully created!", "post": post}, nil
}

func (r *Routes) updatePost(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	id, err := call.Params.GetObjectID("id")
	if err != nil {
		return nil, err
	}
	options, _ := call.Params["options"].(map[string]any)
	post, err := r.posting.Update(ctx, id, user, call.Params.GetOptionalString("content"), options)
	if err != nil {
		return nil, err
	}
	return gin.H{"msg": "Post successfully updated!", "post": post}, nil
}

func (r *Routes) deletePost(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	id, err := call.Params.GetObjectID("id")
	if err != nil {
		return nil, err
	}
	if err := r.posting.Delete(ctx, id, user); err != nil {
		return nil, err
	}
	return gin.H{"msg": "Post deleted successfully!"}, nil
}

func (r *Routes) getFriends(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	ids, err := r.friending.GetFriends(ctx, user)
	if err != nil {
		return nil, err
	}
	return r.usernamesOf(ctx, ids), nil
}

func (r *Routes) removeFriend(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	friend, err := r.authing.GetByUsername(ctx, call.Params.GetString("friend"))
	if err != nil {
		return nil, err
	}
	if err := r.friending.RemoveFriend(ctx, user, friend.ID); err != nil {
		return nil, err
	}
	return gin.H{"msg": "Friend removed!"}, nil
}

func (r *Routes) getRequests(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	return r.friending.GetRequests(ctx, user)
}

func (r *Routes) sendFriendRequest(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	to, err := r.authing.GetByUsername(ctx, call.Params.GetString("to"))
	if err != nil {
		return nil, err
	}
	if _, err := r.friending.SendRequest(ctx, user, to.ID); err != nil {
		return nil, err
	}
	return gin.H{"msg": "Sent request!"}, nil
}

func (r *Routes) removeFriendRequest(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	to, err := r.authing.GetByUsername(ctx, call.Params.GetString("to"))
	if err != nil {
		return nil, err
	}
	if err := r.friending.RemoveRequest(ctx, user, to.ID); err != nil {
		return nil, err
	}
	return gin.H{"msg": "Removed request!"}, nil
}

func (r *Routes) acceptFriendRequest(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	from, err := r.authing.GetByUsername(ctx, call.Params.GetString("from"))
	if err != nil {
		return nil, err
	}
	if err := r.friending.AcceptRequest(ctx, from.ID, user); err != nil {
		return nil, err
	}
	return gin.H{"msg": "Accepted request!"}, nil
}

func (r *Routes) rejectFriendRequest(ctx context.Context, call *router.Call) (any, error) {
	user, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	from, err := r.authing.GetByUsername(ctx, call.Params.GetString("from"))
	if err != nil {
		return nil, err
	}
	if err := r.friending.RejectRequest(ctx, from.ID, user); err != nil {
		return nil, err
	}
	return gin.H{"msg": "Rejected request!"}, nil
}

func (r *Routes) createImage(ctx context.Context, call *router.Call) (any, error) {
	author, err := call.Session.GetUser()
	if err != nil {
		return nil, err
	}
	parent := primitive.NilObjectID
	if p := call.Params.GetString("parent"); p != "" {
		parent, err = call.Params.GetObjectID("parent")
		if err != nil {
			return nil, err
		}
	}
	created, err := r.imaging.Create(ctx, author, imaging.CreateInput{
		Parent:        parent,
		Coordinate:    call.Params.GetString("coordinate"),
		Type:          call.Params.GetString("type"),
		Step:          call.Params.GetString("step"),
		Prompt:        call.Params.GetString("prompt"),
		OriginalImage: call.Params.GetString("originalImage"),
		SteppedImage:  call.Params.GetString("steppedImage"),
		PromptedImage: call.Params.GetString("promptedImage"),
	})
	if err != nil {
		return nil, err
	}
	return gin.H{"msg": "Image successfully created!", "image": created}, nil
}

func (r *Routes) getImagesByAuthor(ctx context.Context, call *router.Call) (any, error) {
	author, err := call.Params.GetObjectID("author")
	if err != nil {
		return nil, err
	}
	return r.imaging.GetByAuthor(ctx, author)
}

func (r *Routes) deleteImagesByAuthor(ctx context.Context, call *router.Call) (any, error) {
	author, err := call.Params.GetObjectID("authorId")
	if err != nil {
		return nil, err
	}
	if _, err := r.imaging.DeleteAllByAuthor(ctx, author); err != nil {
		return nil, err
	}
	return gin.H{"msg": "All images deleted for this author."}, nil
}

func (r *Routes) getImageByID(ctx context.Context, call *router.Call) (any, error) {
	id, err := call.Params.GetObjectID("id")
	if err != nil {
		return nil, err
	}
	return r.imaging.GetByID(ctx, id)
}

func (r *Routes) updateImage(ctx context.Context, call *router.Call) (any, error) {
	id, err := call.Params.GetObjectID("id")
	if err != nil {
		return nil, err
	}
	err = r.imaging.Update(ctx, id, imaging.UpdatePatch{
		Coordinate:    call.Params.GetOptionalString("coordinate"),
		Type:          call.Params.GetOptionalString("type"),
		Step:          call.Params.GetOptionalString("step"),
		Prompt:        call.Params.GetOptionalString("prompt"),
		OriginalImage: call.Params.GetOptionalString("originalImage"),
		SteppedImage:  call.Params.GetOptionalString("steppedImage"),
		PromptedImage: call.Params.GetOptionalString("promptedImage"),
	})
	if err != nil {
		return nil, err
	}
	return gin.H{"msg": "Image updated successfully."}, nil
}

func (r *Routes) getImageOriginal(ctx context.Context, call *router.Call) (any, error) {
	id, err := call.Params.GetObjectID("id")
	if err != nil {
		return nil, err
	}
	url, err := r.imaging.OriginalURL(ctx, id)
	if err != nil {
		return nil, err
	}
	return gin.H{"url": url}, nil
}

func (r *Routes) generateSimilarWords(ctx context.Context, call *router.Call) (any, error) {
	words, err := r.imaging.GenerateSimilarWords(ctx, call.Params.GetString("prompt"))
	if err != nil {
		return nil, err
	}
	return gin.H{"words": words}, nil
}

func (r *Routes) generateWordList(ctx context.Context, call *router.Call) (any, error) {
	words, err := r.completer.GenerateWordList(ctx, call.Params.GetString("inputText"))
	if err != nil {
		return nil, err
	}
	return gin.H{"words": words}, nil
}

// usernamesOf maps ids to usernames, skipping accounts that no longer exist.
func (r *Routes) usernamesOf(ctx context.Context, ids []primitive.ObjectID) []string {
	names := []string{}
	for _, id := range ids {
		u, err := r.authing.GetByID(ctx, id)
		if err != nil {
			continue
		}
		names = append(names, u.Username)
	}
	return names
}
